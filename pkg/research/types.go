package research

import (
	"context"
	"errors"
	"time"

	"github.com/mikeboe/researchify/pkg/localdocs"
	"github.com/mikeboe/researchify/pkg/research/tools"
)

var (
	// ErrEmptyTopic is returned when the topic is blank after trimming.
	ErrEmptyTopic = errors.New("topic must not be empty")
	// ErrNoResults is returned when no source produced anything to report on.
	ErrNoResults = errors.New("no search results")
)

// FailureMessage is shown to the user when a report cannot be produced.
const FailureMessage = "Sorry report generation failed. Please try again."

// SearchResult is one source handed to the report prompt.
type SearchResult struct {
	Provider string `json:"provider"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url"`
	Content  string `json:"content"`
}

// Library is the local document collection of a session.
type Library interface {
	Ready() bool
	Search(ctx context.Context, query string) (tools.Result, error)
	Texts() []localdocs.FileText
}

// Request describes one report run.
type Request struct {
	Topic   string
	Library Library
}

// Report is the outcome of a successful run.
type Report struct {
	Topic     string         `json:"topic"`
	Markdown  string         `json:"report"`
	Sources   []SearchResult `json:"sources"`
	Warnings  []string       `json:"warnings,omitempty"`
	Model     string         `json:"model,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
