// Пакет cli — служебные команды DongriGo (dongrigoctl) для обслуживания
// контента и эксплуатации.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bigkaa/dongrigo/internal/config"
	"github.com/bigkaa/dongrigo/internal/database"
	"github.com/bigkaa/dongrigo/internal/repository"
)

// ExitError — завершение команды с заданным кодом выхода.
// Сообщение уже выведено командой, main только вызывает os.Exit.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("код выхода %d", e.Code)
}

// exitCode возвращает ошибку для ненулевого кода или nil.
func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}

// app — зависимости команды, работающей с БД.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	store  repository.Store
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// loadConfig загружает конфигурацию и настраивает логирование в stderr.
func loadConfig(stderr io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	logger := config.NewLogger(cfg, stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openApp загружает конфигурацию и подключается к PostgreSQL.
func openApp(ctx context.Context, stderr io.Writer) (*app, error) {
	cfg, logger, err := loadConfig(stderr)
	if err != nil {
		return nil, err
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		store:  repository.NewStore(pool),
	}, nil
}

// NewRootCommand создаёт корневую команду dongrigoctl со всеми подкомандами.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "dongrigoctl",
		Short:         "Служебные команды DongriGo",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newSeedProdCommand(),
		newRebuildSeedCommand(),
		newCheckIntegrityCommand(),
		newFixCountryISOCommand(),
		newFixSlugHistoryCommand(),
		newFixTagSlugsCommand(),
		newAuditContentCommand(),
		newOpsCheckCommand(),
		newImportCountriesCommand(),
		newMigrateCommand(),
	)
	return root
}

// Execute выполняет корневую команду и возвращает код выхода процесса.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	fmt.Fprintln(root.ErrOrStderr(), "Ошибка:", err)
	return 1
}
