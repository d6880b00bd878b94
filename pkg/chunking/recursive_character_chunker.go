package chunking

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

type RecursiveCharacterChunker struct {
	splitter textsplitter.RecursiveCharacter
}

func NewRecursiveCharacterChunker(chunkSize, overlap int) *RecursiveCharacterChunker {
	return &RecursiveCharacterChunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " "}),
		),
	}
}

func (c *RecursiveCharacterChunker) Split(text string) ([]string, error) {
	chunks, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	return chunks, nil
}

var _ Chunker = (*RecursiveCharacterChunker)(nil)
