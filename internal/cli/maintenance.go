package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/service"
)

// dryRunExit — код выхода команды обслуживания: dry-run, нашедший
// работу, завершается с 1.
func dryRunExit(apply bool, pending int) error {
	if !apply && pending > 0 {
		return exitCode(1)
	}
	return nil
}

func newFixCountryISOCommand() *cobra.Command {
	var (
		apply bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "fix_country_iso",
		Short: "Найти и очистить некорректные iso_a3 стран",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := service.NewMaintenanceService(a.store, a.logger).FixCountryISO(ctx, apply)
			if err != nil {
				return err
			}
			printISOFix(cmd.OutOrStdout(), res, apply, limit)
			return dryRunExit(apply, len(res.Bad))
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "очистить найденные коды")
	cmd.Flags().IntVar(&limit, "limit", service.DefaultReportLimit, "сколько записей вывести")
	return cmd
}

func newFixSlugHistoryCommand() *cobra.Command {
	var (
		apply   bool
		verbose bool
		limit   int
		kind    string
	)
	cmd := &cobra.Command{
		Use:   "fix_slug_history",
		Short: "Удалить проблемные записи истории slug",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k := model.SlugKind(kind)
			if kind != "" && !k.Valid() {
				return fmt.Errorf("--kind: недопустимое значение %q, допустимые: %v", kind, model.SlugKinds())
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := service.NewMaintenanceService(a.store, a.logger).FixSlugHistory(ctx, k, apply)
			if err != nil {
				return err
			}
			printHistoryFix(cmd.OutOrStdout(), res, apply, verbose, limit)
			if apply && res.RemainingInvalid > 0 {
				return exitCode(1)
			}
			return dryRunExit(apply, len(res.ToDelete))
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "удалить найденные записи")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "вывести записи по группам")
	cmd.Flags().IntVar(&limit, "sample", 20, "сколько записей каждой группы вывести")
	cmd.Flags().StringVar(&kind, "kind", "", "тип элемента: country, post или tag (по умолчанию все)")
	return cmd
}

func newFixTagSlugsCommand() *cobra.Command {
	var (
		apply   bool
		verbose bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "fix_tag_slugs",
		Short: "Привести slug тегов к виду по имени",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := service.NewMaintenanceService(a.store, a.logger).FixTagSlugs(ctx, apply)
			if err != nil {
				return err
			}
			printTagSlugFix(cmd.OutOrStdout(), res, apply, verbose, limit)
			return dryRunExit(apply, len(res.Candidates))
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "переименовать теги")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "вывести теги")
	cmd.Flags().IntVar(&limit, "sample", 20, "сколько тегов вывести")
	return cmd
}

func newAuditContentCommand() *cobra.Command {
	var (
		verbose bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "audit_content",
		Short: "Проверить контент без изменений",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := service.NewMaintenanceService(a.store, a.logger).Audit(ctx, verbose, limit)
			if err != nil {
				return err
			}
			printAudit(cmd.OutOrStdout(), report)
			if !report.OK() {
				return exitCode(1)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verbose, "verbose", false, "вывести примеры проблемных записей")
	cmd.Flags().IntVar(&limit, "sample", 20, "сколько примеров вывести")
	return cmd
}
