package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/dongrigo/internal/service"
)

func newSeedProdCommand() *cobra.Command {
	var opts service.SeedOptions
	cmd := &cobra.Command{
		Use:   "seed_prod",
		Short: "Загрузить продуктивную фикстуру (идемпотентно по SHA-256)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if opts.FixturePath == "" {
				opts.FixturePath = a.cfg.SeedFixturePath
			}
			integrity := service.NewIntegrityService(a.store, a.logger)
			svc := service.NewSeedService(a.store, integrity, a.cfg.MediaBaseURL, a.logger)

			res, err := svc.Seed(ctx, opts)
			if err != nil {
				return err
			}
			printSeedResult(cmd.OutOrStdout(), opts.FixturePath, res)
			if res.IntegrityErr != nil {
				a.logger.Error("check_integrity после загрузки завершился ошибкой",
					slog.String("error", res.IntegrityErr.Error()),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.FixturePath, "fixture", "", "путь к фикстуре (по умолчанию DG_SEED_FIXTURE)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "загрузить даже при совпадении хеша")
	cmd.Flags().BoolVar(&opts.Wipe, "wipe", false, "удалить весь контент перед загрузкой")
	return cmd
}

func newRebuildSeedCommand() *cobra.Command {
	var (
		output string
		indent int
	)
	cmd := &cobra.Command{
		Use:   "rebuild_seed",
		Short: "Выгрузить текущий контент в файл фикстуры",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if indent < 0 {
				return fmt.Errorf("--indent: ожидается неотрицательное число, получено %d", indent)
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if output == "" {
				output = a.cfg.SeedFixturePath
			}
			n, err := service.NewSeedService(a.store, nil, a.cfg.MediaBaseURL, a.logger).Rebuild(ctx, output, indent)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Фикстура записана: %s (%d записей)\n", output, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "файл фикстуры (по умолчанию DG_SEED_FIXTURE)")
	cmd.Flags().IntVar(&indent, "indent", 2, "отступ JSON")
	return cmd
}
