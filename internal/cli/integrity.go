package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bigkaa/dongrigo/internal/service"
)

// stdinIsTerminal сообщает, подключён ли stdin к терминалу.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirm задаёт вопрос оператору и ждёт ответа y/yes/д/да.
// Без терминала подтверждение не запрашивается.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	if !stdinIsTerminal() {
		return true, nil
	}
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("чтение ответа: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "д", "да":
		return true, nil
	}
	return false, nil
}

func newCheckIntegrityCommand() *cobra.Command {
	var (
		fix    bool
		asJSON bool
		limit  int
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "check_integrity",
		Short: "Проверить целостность контента и при --fix исправить нарушения",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if fix && !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "Применить исправления к базе данных?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.ErrOrStderr(), "Отменено.")
					return nil
				}
			}

			a, err := openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := service.NewIntegrityService(a.store, a.logger).Run(ctx, fix)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report.JSON(limit))
			}
			printIntegrityReport(cmd.OutOrStdout(), report, limit)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "исправить нарушения")
	cmd.Flags().BoolVar(&asJSON, "json", false, "вывести отчёт в JSON")
	cmd.Flags().IntVar(&limit, "limit", service.DefaultReportLimit, "размер выборок в отчёте")
	cmd.Flags().BoolVar(&yes, "yes", false, "не запрашивать подтверждение для --fix")
	return cmd
}
