package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/dongrigo/internal/database"
	"github.com/bigkaa/dongrigo/internal/media"
	"github.com/bigkaa/dongrigo/internal/repository"
	"github.com/bigkaa/dongrigo/internal/service"
)

func newOpsCheckCommand() *cobra.Command {
	var (
		asJSON bool
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "ops_check",
		Short: "Проверить готовность окружения к запуску",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var probes service.OpsProbes
			pool, connErr := database.Connect(ctx, cfg, logger)
			if connErr != nil {
				probes.PingDB = func(context.Context) error { return connErr }
			} else {
				defer pool.Close()
				probes.PingDB = pool.Ping
				probes.Migrations = func() (database.MigrationState, error) { return database.MigrationStatus(cfg) }
				probes.Seed = repository.NewStore(pool).Repos().Seed
			}
			if store, err := media.New(ctx, cfg); err != nil {
				logger.Warn("Хранилище медиа не инициализировано", slog.String("error", err.Error()))
			} else {
				probes.Media = store
			}

			report := service.NewOpsChecker(cfg, probes, logger).Run(ctx)
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				printOpsReport(cmd.OutOrStdout(), report)
			}
			if strict && report.HasErrors() {
				return exitCode(2)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "вывести отчёт в JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "завершиться с кодом 2 при статусе ERROR")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить встроенные миграции БД",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := database.Migrate(cfg, logger); err != nil {
				return err
			}
			st, err := database.MigrationStatus(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Версия схемы: %d (последняя %d)\n", st.Current, st.Latest)
			return nil
		},
	}
}

func newImportCountriesCommand() *cobra.Command {
	var opts service.GeoImportOptions
	cmd := &cobra.Command{
		Use:   "import_countries",
		Short: "Импортировать страны из GeoJSON (Natural Earth)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch opts.SlugMode {
			case service.SlugModeKeep, service.SlugModeISO2, service.SlugModeSlugifyEn:
			default:
				return fmt.Errorf("--slug-mode: недопустимое значение %q, допустимые: keep, iso2, slugify_en", opts.SlugMode)
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			// Кэш глобуса сервера живёт в другом процессе и обновится по TTL.
			res, err := service.NewGeoImportService(a.store, nil, a.logger).Import(ctx, opts)
			if err != nil {
				return err
			}
			printGeoImport(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.GeoJSONPath, "geojson", "", "файл GeoJSON с границами стран")
	cmd.Flags().StringVar(&opts.KoMapPath, "ko-map", "", "JSON с корейскими названиями по ISO_A2")
	cmd.Flags().BoolVar(&opts.UpdateExisting, "update-existing", false, "обновлять существующие страны")
	cmd.Flags().StringVar(&opts.SlugMode, "slug-mode", service.SlugModeKeep, "slug новых стран: keep, iso2 или slugify_en")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "только показать, что будет сделано")
	_ = cmd.MarkFlagRequired("geojson")
	return cmd
}
