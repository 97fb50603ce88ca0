// autopkg CLI — инструмент командной строки для управления
// заявками, границами, каталогом пакетов и schedules через HTTP API.
//
// Использование:
//
//	autopkg [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	job        Управление jobs
//	boundary   Просмотр границ
//	package    Просмотр каталога пакетов
//	processor  Просмотр процессоров
//	schedule   Управление schedules
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/autopkg/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "autopkg",
		Short:         "autopkg CLI — geospatial data package tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewJobCmd(clientFn, outputFn),
		cli.NewBoundaryCmd(clientFn, outputFn),
		cli.NewPackageCmd(clientFn, outputFn),
		cli.NewProcessorCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
