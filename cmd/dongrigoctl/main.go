// Служебные команды DongriGo: seed_prod, check_integrity, ops_check и другие.
// Запуск: dongrigoctl <команда> [флаги]; конфигурация из переменных DG_*.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bigkaa/dongrigo/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
