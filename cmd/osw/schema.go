package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenSemanticLab/osw-go/model"
	"github.com/OpenSemanticLab/osw-go/pagepackage"
	"github.com/OpenSemanticLab/osw-go/schema"
)

func fetchSchemaCmd() *cobra.Command {
	var bundle string

	cmd := &cobra.Command{
		Use:   "fetch-schema CATEGORY...",
		Short: "Compile category schemas from a bundle",
		Long: `fetch-schema resolves the given category pages and their
transitive schema references inside a page package bundle, compiles
them and prints the resulting classes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, transport, err := pagepackage.Read(bundle)
			if err != nil {
				return err
			}
			ns := model.NewNamespace()
			registry := schema.NewRegistry(transport, ns)
			if err := registry.Fetch(cmd.Context(), args, schema.ModeReplace); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range ns.Names() {
				cls, _ := ns.Get(name)
				fmt.Fprintf(out, "%s\t%s\tkind=%s\tproperties=%d\n",
					cls.Name, cls.CategoryTitle, cls.Kind, len(cls.Properties))
				if len(cls.Parents) > 0 {
					fmt.Fprintf(out, "\tparents: %s\n", strings.Join(cls.Parents, ", "))
				}
				for _, prop := range cls.SortedPropertyNames() {
					p := cls.Properties[prop]
					required := ""
					if p.Required {
						required = " (required)"
					}
					fmt.Fprintf(out, "\t%s: %s%s\n", p.Name, p.Type, required)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bundle, "package", "", "Page package bundle directory (required)")
	_ = cmd.MarkFlagRequired("package")
	return cmd
}
