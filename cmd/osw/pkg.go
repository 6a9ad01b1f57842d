package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/OpenSemanticLab/osw-go/pagepackage"
	"github.com/OpenSemanticLab/osw-go/slotstore"
)

func packageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "package",
		Short: "Export and merge page package bundles",
	}
	cmd.AddCommand(packageExportCmd())
	cmd.AddCommand(packageUploadCmd())
	return cmd
}

func packageExportCmd() *cobra.Command {
	var (
		from        string
		dir         string
		name        string
		pkgVersion  string
		description string
		baseURL     string
		skipFiles   bool
	)

	cmd := &cobra.Command{
		Use:   "export [PATTERN...]",
		Short: "Export a bundle subset into a new bundle",
		Long: `export selects pages of a source bundle by title glob patterns
(e.g. "Category:OSW*" or "Item:**") and writes them into a new
deterministic bundle <dir>/<name>. Without patterns, every page of the
source is exported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, transport, err := pagepackage.Read(from)
			if err != nil {
				return err
			}
			store := slotstore.NewStore(transport)

			param := pagepackage.ExportParam{
				Dir:         dir,
				Name:        name,
				Version:     pkgVersion,
				Description: description,
				BaseURL:     baseURL,
				Patterns:    args,
				SkipFiles:   skipFiles,
			}
			if len(args) == 0 {
				for _, entry := range manifest.Pages {
					param.Titles = append(param.Titles, entry.Title)
				}
			}

			exported, err := pagepackage.NewExporter(store).Export(cmd.Context(), param)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d pages to %s\n",
				len(exported.Pages), filepath.Join(dir, name))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source bundle directory (required)")
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory the bundle root is created in")
	cmd.Flags().StringVar(&name, "name", "", "Package name (required)")
	cmd.Flags().StringVar(&pkgVersion, "pkg-version", "0.1.0", "Package version")
	cmd.Flags().StringVar(&description, "description", "", "Package description")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL of the originating instance")
	cmd.Flags().BoolVar(&skipFiles, "skip-files", false, "Leave file payloads out of the bundle")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func packageUploadCmd() *cobra.Command {
	var (
		target    string
		overwrite bool
		comment   string
	)

	cmd := &cobra.Command{
		Use:   "upload BUNDLE",
		Short: "Merge a bundle into a target bundle",
		Long: `upload imports the pages and files of a source bundle into a
target bundle. Page copies are diff-aware: slots identical on the
target are not rewritten, so merging an unchanged source is a no-op.
The target bundle is rewritten in place; its directory must be named
after its package.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetManifest, targetTransport, err := pagepackage.Read(target)
			if err != nil {
				return err
			}
			targetTransport.SetReadOnly(false)
			store := slotstore.NewStore(targetTransport)

			results, err := pagepackage.Upload(cmd.Context(), store, pagepackage.UploadParam{
				Root:      args[0],
				Overwrite: overwrite,
				Comment:   comment,
			})
			if err != nil {
				return err
			}

			updated := 0
			out := cmd.OutOrStdout()
			for _, r := range results {
				if len(r.UpdatedSlots) == 0 {
					continue
				}
				updated++
				fmt.Fprintf(out, "%s: %v\n", r.FullTitle, r.UpdatedSlots)
			}
			fmt.Fprintf(out, "updated %d of %d pages\n", updated, len(results))

			param := pagepackage.ExportParam{
				Dir:         filepath.Dir(target),
				Name:        targetManifest.Name,
				Version:     targetManifest.Version,
				Description: targetManifest.Description,
				BaseURL:     targetManifest.BaseURL,
				Titles:      targetTransport.Titles(),
			}
			if _, err := pagepackage.NewExporter(store).Export(cmd.Context(), param); err != nil {
				return fmt.Errorf("rewrite target bundle: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Target bundle directory (required)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Also update pages that already exist on the target")
	cmd.Flags().StringVar(&comment, "comment", "", "Edit comment recorded on the target")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}
