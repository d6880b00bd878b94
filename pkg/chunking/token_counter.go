package chunking

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the cl100k_base encoding. The BPE ranks are
// fetched and cached by tiktoken-go on first use.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &TiktokenCounter{encoding: enc}, nil
}

func (t *TiktokenCounter) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// ApproxCounter assumes ~4 characters per token.
type ApproxCounter struct{}

func (ApproxCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
