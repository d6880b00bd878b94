package chunking

// Chunker splits a long text into passages small enough to search for.
type Chunker interface {
	Split(text string) ([]string, error)
}

// TokenCounter reports how many model tokens a text takes.
type TokenCounter interface {
	Count(text string) int
}
