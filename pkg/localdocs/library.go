// Package localdocs turns uploaded files into a searchable per-session
// library.
package localdocs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mikeboe/researchify/pkg/extract"
	"github.com/mikeboe/researchify/pkg/research/tools"
	"github.com/mikeboe/researchify/pkg/splitter"
	"github.com/mikeboe/researchify/pkg/vectorstore"
)

// ErrNotReady is returned by Search before any chunk has been indexed.
var ErrNotReady = errors.New("local documents are not indexed")

// SourceName is the locator reported for local similarity results.
const SourceName = "Local Documents"

// Upload is one file handed to the library.
type Upload struct {
	Name string
	Data []byte
}

// FileText is the full extracted text of one upload.
type FileText struct {
	Name string
	Text string
}

// FileStatus reports what happened to one upload during Ingest.
type FileStatus struct {
	Name   string `json:"name"`
	Chunks int    `json:"chunks"`
	Chars  int    `json:"chars"`
	Error  string `json:"error,omitempty"`
}

// Extractor pulls plain text out of an uploaded file.
type Extractor interface {
	Extract(ctx context.Context, name string, data []byte, opts extract.Options) (string, error)
}

// Library holds the extracted texts and similarity index of one session.
type Library struct {
	extractor Extractor
	splitter  *splitter.TextSplitter
	store     vectorstore.Store
	topK      int

	Logger *slog.Logger

	mu     sync.RWMutex
	texts  []FileText
	chunks int
}

// New creates an empty library indexing into store.
func New(extractor Extractor, ts *splitter.TextSplitter, store vectorstore.Store, topK int) *Library {
	if topK <= 0 {
		topK = 4
	}
	return &Library{
		extractor: extractor,
		splitter:  ts,
		store:     store,
		topK:      topK,
	}
}

// Ingest extracts, chunks and indexes uploads. A file that fails is reported
// in its status and skipped; the others are still indexed.
func (l *Library) Ingest(ctx context.Context, uploads []Upload, ocr bool) ([]FileStatus, error) {
	statuses := make([]FileStatus, 0, len(uploads))
	var texts []FileText
	var docs []vectorstore.Document

	for _, up := range uploads {
		status := FileStatus{Name: up.Name}

		text, err := l.extractor.Extract(ctx, up.Name, up.Data, extract.Options{OCR: ocr})
		if err != nil {
			l.logger().Warn("failed to extract file", "file", up.Name, "error", err)
			status.Error = err.Error()
			statuses = append(statuses, status)
			continue
		}
		status.Chars = len([]rune(text))
		texts = append(texts, FileText{Name: up.Name, Text: text})

		chunks, err := l.splitter.SplitText(text)
		if err != nil {
			status.Error = fmt.Sprintf("failed to split text: %v", err)
			statuses = append(statuses, status)
			continue
		}
		for i, c := range chunks {
			docs = append(docs, vectorstore.Document{
				Content: c,
				Metadata: map[string]interface{}{
					"source": up.Name,
					"chunk":  i,
				},
			})
		}
		status.Chunks = len(chunks)
		statuses = append(statuses, status)
	}

	if len(docs) > 0 {
		if err := l.store.AddDocuments(ctx, docs); err != nil {
			return statuses, fmt.Errorf("failed to index documents: %w", err)
		}
	}

	l.mu.Lock()
	l.texts = append(l.texts, texts...)
	l.chunks += len(docs)
	l.mu.Unlock()

	l.logger().Info("ingested local documents", "files", len(uploads), "chunks", len(docs))
	return statuses, nil
}

// Ready reports whether at least one chunk is indexed.
func (l *Library) Ready() bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chunks > 0
}

// Search returns the top chunks for query as one result located at
// "Local Documents".
func (l *Library) Search(ctx context.Context, query string) (tools.Result, error) {
	if !l.Ready() {
		return tools.Result{}, ErrNotReady
	}

	hits, err := l.store.SimilaritySearch(ctx, query, l.topK, "")
	if err != nil {
		return tools.Result{}, err
	}

	var sb strings.Builder
	for _, h := range hits {
		sb.WriteString(h.Document.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Sources : ")
	sb.WriteString(SourceName)

	return tools.Result{Title: SourceName, URL: SourceName, Content: sb.String()}, nil
}

// Texts returns the extracted text of each file in upload order.
func (l *Library) Texts() []FileText {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]FileText(nil), l.texts...)
}

// Store exposes the underlying index.
func (l *Library) Store() vectorstore.Store {
	return l.store
}

func (l *Library) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
