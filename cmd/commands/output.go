package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"ghostwriter/export"
	"ghostwriter/repository"
)

type reportFlags struct {
	mode      string
	threshold float64
	docx      string
	json      bool
}

// thresholdPtr returns nil unless --threshold was given.
func (f *reportFlags) thresholdPtr(changed bool) *float64 {
	if !changed {
		return nil
	}
	t := f.threshold
	return &t
}

func writeReport(w io.Writer, report *repository.Report, flags *reportFlags) error {
	if flags.docx != "" {
		if err := export.WriteDocx(report, flags.docx); err != nil {
			return err
		}
	}

	if flags.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if report.Prompt != "" {
		fmt.Fprintf(w, "Generated text:\n%s\n\n", report.Text)
	}

	if len(report.Matches) == 0 {
		fmt.Fprintln(w, "No similar content found.")
	} else if report.Verdict == repository.VerdictSimilar {
		fmt.Fprintf(w, "Similar content found (%d of %d results, mode %s, threshold %.2f):\n",
			report.SimilarCount(), len(report.Matches), report.Mode, report.Threshold)
	} else {
		fmt.Fprintf(w, "No near-duplicates above threshold %.2f. Closest results:\n", report.Threshold)
	}

	for i, m := range report.Matches {
		marker := " "
		if m.Similar {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %d. %s\n     %s\n     score %.2f", marker, i+1, m.Title, m.URL, m.Score)
		if len(m.SharedPhrases) > 0 {
			fmt.Fprintf(w, ", %d shared phrase(s)", len(m.SharedPhrases))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\nReport %s\n", report.ID)
	if flags.docx != "" {
		fmt.Fprintf(w, "Saved %s\n", flags.docx)
	}
	return nil
}
