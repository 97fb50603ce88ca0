package cli

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// NewPackageCmd создаёт группу команд для просмотра каталога пакетов.
func NewPackageCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "package",
		Short: "Browse generated packages",
	}

	cmd.AddCommand(
		newPackageListCmd(clientFn, outputFn),
		newPackageDatasetsCmd(clientFn, outputFn),
		newPackageVersionsCmd(clientFn, outputFn),
		newPackageDatapackageCmd(clientFn, outputFn),
	)

	return cmd
}

func newPackageListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List packages in storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tree, err := client.ListPackages(summary)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(tree))
			for name := range tree {
				names = append(names, name)
			}
			sort.Strings(names)

			headers := []string{"PACKAGE", "DATASETS"}
			rows := make([][]string, len(names))
			for i, name := range names {
				datasets := make([]string, 0, len(tree[name]))
				for ds := range tree[name] {
					datasets = append(datasets, ds)
				}
				sort.Strings(datasets)
				rows[i] = []string{name, strings.Join(datasets, ",")}
			}

			out.Print(headers, rows, tree)
			return nil
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "Skip dataset versions in the tree")

	return cmd
}

func newPackageDatasetsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets PACKAGE",
		Short: "List datasets of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			datasets, err := client.ListPackageDatasets(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(datasets))
			for i, ds := range datasets {
				rows[i] = []string{ds}
			}

			out.Print([]string{"DATASET"}, rows, datasets)
			return nil
		},
	}
}

func newPackageVersionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "versions PACKAGE DATASET",
		Short: "List versions of a dataset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			versions, err := client.ListDatasetVersions(args[0], args[1])
			if err != nil {
				return err
			}

			rows := make([][]string, len(versions))
			for i, v := range versions {
				rows[i] = []string{v}
			}

			out.Print([]string{"VERSION"}, rows, versions)
			return nil
		},
	}
}

func newPackageDatapackageCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "datapackage PACKAGE",
		Short: "Show datapackage.json of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			datapackage, err := client.GetDatapackage(args[0])
			if err != nil {
				return err
			}

			// Таблица здесь бесполезна: метаданные всегда в JSON
			out.JSON(datapackage)
			return nil
		},
	}
}
