package export

import (
	"fmt"
	"strings"

	"ghostwriter/repository"

	"github.com/gingfrederik/docx"
)

// WriteDocx renders a check report as a Word document at path.
func WriteDocx(report *repository.Report, path string) error {
	if report == nil {
		return fmt.Errorf("export: nil report")
	}

	f := docx.NewFile()

	title := f.AddParagraph().AddText("Plagiarism Check Report")
	title.Size(20)
	f.AddParagraph()

	meta := f.AddParagraph().AddText(fmt.Sprintf("Report %s | %s | Source: %s | Mode: %s",
		report.ID, report.CreatedAt.Format("2006-01-02 15:04 MST"), report.Source, report.Mode))
	meta.Size(10)
	meta.Color("808080")

	verdict := f.AddParagraph().AddText(verdictLine(report))
	verdict.Size(14)
	if report.Verdict == repository.VerdictSimilar {
		verdict.Color("C00000")
	} else {
		verdict.Color("008000")
	}

	if report.Prompt != "" {
		heading := f.AddParagraph().AddText("Prompt")
		heading.Size(16)
		f.AddParagraph().AddText(report.Prompt)
	}

	heading := f.AddParagraph().AddText("Checked Text")
	heading.Size(16)
	for _, para := range strings.Split(report.Text, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			f.AddParagraph().AddText(para)
		}
	}

	heading = f.AddParagraph().AddText("Matches")
	heading.Size(16)
	if len(report.Matches) == 0 {
		f.AddParagraph().AddText("No similar content found on the web.")
	}
	for i, m := range report.Matches {
		run := f.AddParagraph().AddText(fmt.Sprintf("%d. %s", i+1, m.Title))
		run.Size(12)

		run = f.AddParagraph().AddText(m.URL)
		run.Size(10)
		run.Color("0000FF")

		run = f.AddParagraph().AddText(fmt.Sprintf("Score: %.2f (lexical %.2f, semantic %.2f, phrase overlap %.0f%%)",
			m.Score, m.LexicalScore, m.SemanticScore, m.PhraseOverlap*100))
		run.Size(10)

		if m.Snippet != "" {
			f.AddParagraph().AddText(m.Snippet)
		}
		for _, phrase := range m.SharedPhrases {
			run = f.AddParagraph().AddText("“" + phrase + "”")
			run.Color("808080")
		}
		f.AddParagraph().AddText("--------------------------------------------------")
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("failed to save docx: %w", err)
	}
	return nil
}

func verdictLine(report *repository.Report) string {
	if report.Verdict == repository.VerdictSimilar {
		return fmt.Sprintf("Similar content found: %d of %d results at threshold %.2f",
			report.SimilarCount(), len(report.Matches), report.Threshold)
	}
	return "No similar content found. The text appears to be original."
}
