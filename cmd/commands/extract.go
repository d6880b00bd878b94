package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// extract <file>: print the text a check would use.
func extractCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the text extracted from a document or image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := newExtractor(cfg).Extract(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the extraction result as JSON")
	return cmd
}
