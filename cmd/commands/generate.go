package commands

import (
	"strings"

	"ghostwriter/checker"

	"github.com/spf13/cobra"
)

// generate <prompt>: write text with Gemini, then check it.
func generateCmd() *cobra.Command {
	flags := &reportFlags{}
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate text from a prompt and check it for similar content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateGenerator(); err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.service.Generate(cmd.Context(), checker.GenerateRequest{
				Prompt:    strings.Join(args, " "),
				Mode:      flags.mode,
				Threshold: flags.thresholdPtr(cmd.Flags().Changed("threshold")),
			})
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report, flags)
		},
	}
	addReportFlags(cmd, flags)
	return cmd
}

func addReportFlags(cmd *cobra.Command, flags *reportFlags) {
	cmd.Flags().StringVar(&flags.mode, "mode", "", "check mode: similarity or results (default from config)")
	cmd.Flags().Float64Var(&flags.threshold, "threshold", checker.DefaultThreshold, "similarity threshold in [0, 1]")
	cmd.Flags().StringVar(&flags.docx, "docx", "", "also write the report to this .docx file")
	cmd.Flags().BoolVar(&flags.json, "json", false, "print the report as JSON")
}
