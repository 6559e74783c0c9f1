package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giygas/labref-api/source"
)

const defaultTemplateDir = "references"

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Copy the built-in reference set into a directory",
		Long: `Write the built-in reference documents into dir (default ./references)
so they can be edited and served with --dir or LAB_REF_DIR. Existing files
with the same names are overwritten.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := defaultTemplateDir
			if len(args) == 1 {
				dest = args[0]
			}
			copied, err := source.CopyTemplate(dest)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range copied {
				fmt.Fprintf(out, "  %s\n", name)
			}
			_, err = fmt.Fprintf(out, "%d reference documents written to %s\n", len(copied), dest)
			return err
		},
	}
}
