package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"quiz-arena/internal/importer"
)

// NewImportCmd loads questions from a CSV or numbered-text file into the pool.
func NewImportCmd(configPath *string) *cobra.Command {
	var (
		format  string
		title   string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import questions from a CSV or text file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := importer.ParseFormat(format)
			if err != nil {
				return err
			}
			if format == "" {
				// unknown extensions fall back to detection
				if byExt, err := importer.ParseFormat(filepath.Ext(path)); err == nil {
					f = byExt
				}
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			b, err := setup(cmd.Context(), *configPath, true)
			if err != nil {
				return err
			}
			defer b.Close()

			report, err := b.pools().Import(cmd.Context(), string(raw), f, title, replace)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d questions, skipped %d.\n", report.Imported, report.Skipped)
			for _, msg := range report.Errors {
				fmt.Fprintf(out, "  %s\n", msg)
			}
			fmt.Fprintf(out, "Pool %q now holds %d questions.\n", report.Quiz.Title, len(report.Quiz.Questions))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "csv, text or auto (default: from the file extension)")
	cmd.Flags().StringVar(&title, "title", "", "quiz title; required when no quiz exists yet")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace the pool instead of appending")
	return cmd
}
