package localdocs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/researchify/pkg/extract"
	"github.com/mikeboe/researchify/pkg/splitter"
	"github.com/mikeboe/researchify/pkg/vectorstore"
)

type fakeExtractor struct {
	texts map[string]string
	errs  map[string]error
	ocr   []bool
}

func (f *fakeExtractor) Extract(_ context.Context, name string, _ []byte, opts extract.Options) (string, error) {
	f.ocr = append(f.ocr, opts.OCR)
	if err := f.errs[name]; err != nil {
		return "", err
	}
	return f.texts[name], nil
}

// wordEmbedder scores text by a handful of topic words.
type wordEmbedder struct{}

var vocab = []string{"mitochondria", "volcano", "jazz"}

func (wordEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, len(vocab)+1)
	for i, w := range vocab {
		v[i] = float32(strings.Count(strings.ToLower(text), w))
	}
	v[len(vocab)] = 0.01
	return v, nil
}

func (e wordEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.EmbedText(ctx, t)
	}
	return out, nil
}

type failingStore struct{ vectorstore.Store }

func (failingStore) SimilaritySearch(context.Context, string, int, string) ([]vectorstore.SimilaritySearchResult, error) {
	return nil, errors.New("index unavailable")
}

func newLibrary(t *testing.T, ex Extractor, topK int) (*Library, *vectorstore.MemoryStore) {
	t.Helper()
	ts, err := splitter.NewRecursiveCharacterTextSplitter(60, 0)
	require.NoError(t, err)
	store := vectorstore.NewMemoryStore(wordEmbedder{})
	return New(ex, ts, store, topK), store
}

func TestIngestAndSearch(t *testing.T) {
	ex := &fakeExtractor{texts: map[string]string{
		"bio.pdf":   "The mitochondria is the powerhouse of the cell.",
		"geo.docx":  "A volcano erupts when magma rises.",
		"music.csv": "jazz jazz jazz",
	}}
	lib, store := newLibrary(t, ex, 1)
	ctx := context.Background()

	statuses, err := lib.Ingest(ctx, []Upload{
		{Name: "bio.pdf"}, {Name: "geo.docx"}, {Name: "music.csv"},
	}, true)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	for _, s := range statuses {
		assert.Equal(t, 1, s.Chunks, s.Name)
		assert.Empty(t, s.Error)
	}
	assert.Equal(t, []bool{true, true, true}, ex.ocr)
	assert.True(t, lib.Ready())

	// every chunk is tagged with the file it came from
	docs, err := store.GetContentBySource(ctx, "geo.docx")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "volcano")

	res, err := lib.Search(ctx, "volcano")
	require.NoError(t, err)
	assert.Equal(t, "Local Documents", res.URL)
	assert.Equal(t, "A volcano erupts when magma rises.\n\nSources : Local Documents", res.Content)

	texts := lib.Texts()
	require.Len(t, texts, 3)
	assert.Equal(t, "bio.pdf", texts[0].Name)
	assert.Equal(t, "music.csv", texts[2].Name)
}

func TestIngestNoFiles(t *testing.T) {
	lib, _ := newLibrary(t, &fakeExtractor{}, 4)

	statuses, err := lib.Ingest(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Empty(t, statuses)
	assert.False(t, lib.Ready())

	_, err = lib.Search(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestIngestSkipsFailedAndEmptyFiles(t *testing.T) {
	ex := &fakeExtractor{
		texts: map[string]string{"ok.pdf": "jazz history", "blank.xls": ""},
		errs:  map[string]error{"broken.docx": errors.New("zip: not a valid zip file")},
	}
	lib, _ := newLibrary(t, ex, 4)

	statuses, err := lib.Ingest(context.Background(), []Upload{
		{Name: "broken.docx"}, {Name: "blank.xls"}, {Name: "ok.pdf"},
	}, false)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.Contains(t, statuses[0].Error, "zip")
	assert.Equal(t, 0, statuses[1].Chunks)
	assert.Equal(t, 1, statuses[2].Chunks)

	texts := lib.Texts()
	require.Len(t, texts, 2)
	assert.Equal(t, FileText{Name: "blank.xls", Text: ""}, texts[0])
	assert.True(t, lib.Ready())
}

func TestSearchPropagatesStoreError(t *testing.T) {
	ts, err := splitter.NewRecursiveCharacterTextSplitter(60, 0)
	require.NoError(t, err)
	store := failingStore{Store: vectorstore.NewMemoryStore(wordEmbedder{})}
	lib := New(&fakeExtractor{texts: map[string]string{"a.pdf": "jazz"}}, ts, store, 4)

	_, err = lib.Ingest(context.Background(), []Upload{{Name: "a.pdf"}}, false)
	require.NoError(t, err)

	_, err = lib.Search(context.Background(), "jazz")
	assert.EqualError(t, err, "index unavailable")
}

func TestNilLibrary(t *testing.T) {
	var lib *Library
	assert.False(t, lib.Ready())
	assert.Nil(t, lib.Texts())
}

func TestRegistry(t *testing.T) {
	var opened []string
	reg := NewRegistry(&fakeExtractor{}, func(_ context.Context, id string) (vectorstore.Store, error) {
		opened = append(opened, id)
		return vectorstore.NewMemoryStore(wordEmbedder{}), nil
	}, 100, 10, 4)

	id, lib, err := reg.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{id}, opened)

	got, err := reg.Get(id)
	require.NoError(t, err)
	assert.Same(t, lib, got)

	require.NoError(t, reg.Delete(context.Background(), id))
	_, err = reg.Get(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, reg.Delete(context.Background(), id), ErrSessionNotFound)
}

func TestRegistryDeleteDropsIndex(t *testing.T) {
	store := vectorstore.NewMemoryStore(wordEmbedder{})
	reg := NewRegistry(&fakeExtractor{texts: map[string]string{"a.pdf": "mitochondria"}}, func(context.Context, string) (vectorstore.Store, error) {
		return store, nil
	}, 100, 10, 4)

	id, lib, err := reg.Create(context.Background())
	require.NoError(t, err)
	_, err = lib.Ingest(context.Background(), []Upload{{Name: "a.pdf"}}, false)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())
	require.Equal(t, 1, reg.Len())

	require.NoError(t, reg.Delete(context.Background(), id))
	assert.Zero(t, store.Len())
	assert.Zero(t, reg.Len())
}

func TestRegistryRejectsBadChunking(t *testing.T) {
	reg := NewRegistry(&fakeExtractor{}, func(context.Context, string) (vectorstore.Store, error) {
		return nil, errors.New("should not be called")
	}, 10, 20, 4)

	_, _, err := reg.Create(context.Background())
	assert.Error(t, err)
}
