package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenSemanticLab/osw-go/model"
	"github.com/OpenSemanticLab/osw-go/osw"
	"github.com/OpenSemanticLab/osw-go/pagepackage"
)

func queryCmd() *cobra.Command {
	var (
		bundle string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "query CATEGORY",
		Short: "List instances of a category in a bundle",
		Long: `query runs a semantic instance query against the offline view of
a page package bundle and prints the matching page titles. The
category may be given as "Category:OSW..." or as a bare title.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, transport, err := pagepackage.Read(bundle)
			if err != nil {
				return err
			}
			client := osw.New(transport, osw.WithNamespace(model.NewNamespace()))
			titles, err := client.QueryInstances(cmd.Context(), args[0], limit, offset)
			if err != nil {
				return err
			}
			for _, title := range titles {
				fmt.Fprintln(cmd.OutOrStdout(), title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bundle, "package", "", "Page package bundle directory (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (0 = no limit)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip the first n results")
	_ = cmd.MarkFlagRequired("package")
	return cmd
}
