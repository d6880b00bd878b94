package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ghostwriter/checker"
	"ghostwriter/repository"

	"github.com/spf13/cobra"
)

// check [text] [--file path]: check typed text, a file, or stdin.
func checkCmd() *cobra.Command {
	flags := &reportFlags{}
	var file string

	cmd := &cobra.Command{
		Use:   "check [text]",
		Short: "Check text for similar content on the web",
		Long:  "Check text for similar content on the web. The text comes from the arguments, --file, or stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" && len(args) > 0 {
				return fmt.Errorf("pass either text or --file, not both")
			}

			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			threshold := flags.thresholdPtr(cmd.Flags().Changed("threshold"))

			var report *repository.Report
			switch {
			case file != "":
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				report, err = a.service.CheckFile(cmd.Context(), filepath.Base(file), f, flags.mode, threshold)
				if err != nil {
					return err
				}
			default:
				text := strings.Join(args, " ")
				if text == "" {
					data, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return err
					}
					text = string(data)
				}
				report, err = a.service.Check(cmd.Context(), checker.CheckRequest{
					Text:      text,
					Source:    repository.SourceTyped,
					Mode:      flags.mode,
					Threshold: threshold,
				})
				if err != nil {
					return err
				}
			}
			return writeReport(cmd.OutOrStdout(), report, flags)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "check the text extracted from this file")
	addReportFlags(cmd, flags)
	return cmd
}
