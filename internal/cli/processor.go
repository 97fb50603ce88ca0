package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewProcessorCmd создаёт группу команд для просмотра процессоров.
func NewProcessorCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "processor",
		Short: "Browse registered processors",
	}

	cmd.AddCommand(newProcessorListCmd(clientFn, outputFn))

	return cmd
}

func newProcessorListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered processors",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			procs, err := client.ListProcessors()
			if err != nil {
				return err
			}

			headers := []string{"SIGNATURE", "DATASET", "VERSION", "FORMATS", "LICENSE"}
			rows := make([][]string, len(procs))
			for i, p := range procs {
				rows[i] = []string{
					p.Signature, p.Dataset, p.Version,
					strings.Join(p.DataFormats, ","), p.License,
				}
			}

			out.Print(headers, rows, procs)
			return nil
		},
	}
}
