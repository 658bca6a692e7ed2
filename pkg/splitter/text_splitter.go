package splitter

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

// TextSplitter wraps the langchaingo recursive character splitter.
type TextSplitter struct {
	splitter textsplitter.TextSplitter
}

// NewRecursiveCharacterTextSplitter creates a new recursive character text splitter
func NewRecursiveCharacterTextSplitter(chunkSize, chunkOverlap int) (*TextSplitter, error) {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("invalid chunking: size %d, overlap %d", chunkSize, chunkOverlap)
	}

	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	return &TextSplitter{splitter: ts}, nil
}

// SplitText splits text into chunks. Blank input yields no chunks.
func (ts *TextSplitter) SplitText(text string) ([]string, error) {
	chunks, err := ts.splitter.SplitText(text)
	if err != nil {
		return nil, err
	}
	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}
