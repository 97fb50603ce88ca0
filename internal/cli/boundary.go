package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewBoundaryCmd создаёт группу команд для работы с границами.
func NewBoundaryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boundary",
		Short: "Browse boundaries",
	}

	cmd.AddCommand(
		newBoundaryListCmd(clientFn, outputFn),
		newBoundaryShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newBoundaryListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var lon string
	var lat string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List or search boundaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			boundaries, err := client.ListBoundaries(ListBoundariesOpts{
				Name:  name,
				Lon:   lon,
				Lat:   lat,
				Limit: limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME"}
			rows := make([][]string, len(boundaries))
			for i, b := range boundaries {
				rows[i] = []string{strconv.FormatInt(b.ID, 10), b.Name}
			}

			out.Print(headers, rows, boundaries)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Search by name fragment")
	cmd.Flags().StringVar(&lon, "lon", "", "Longitude for point search (requires --lat)")
	cmd.Flags().StringVar(&lat, "lat", "", "Latitude for point search (requires --lon)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newBoundaryShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show boundary with geometry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			boundary, err := client.GetBoundary(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"NAME", "GEOMETRY_BYTES", "ENVELOPE_BYTES"},
				[][]string{{
					boundary.Name,
					strconv.Itoa(len(boundary.Geometry)),
					strconv.Itoa(len(boundary.Envelope)),
				}},
				boundary,
			)
			return nil
		},
	}
}
