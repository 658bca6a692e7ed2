package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wikiServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/w/api.php", r.URL.Path)
		assert.Equal(t, "search", r.URL.Query().Get("generator"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestWikipediaSearchTruncates(t *testing.T) {
	extract := strings.Repeat("é", 30)
	srv := wikiServer(t, `{"query":{"pages":[{"title":"Accent","fullurl":"https://en.wikipedia.org/wiki/Accent","extract":"`+extract+`"}]}}`)
	defer srv.Close()

	w := NewWikipediaWithClient(10, NewRestClient(srv.URL, 5*time.Second))
	results, err := w.Search(context.Background(), "accent")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Accent", results[0].URL)
	assert.Equal(t, strings.Repeat("é", 10)+"...", results[0].Content)
}

func TestWikipediaNotFound(t *testing.T) {
	srv := wikiServer(t, `{"batchcomplete":true}`)
	defer srv.Close()

	w := NewWikipediaWithClient(1000, NewRestClient(srv.URL, 5*time.Second))
	_, err := w.Search(context.Background(), "qwertyuiopasdf")
	assert.True(t, errors.Is(err, ErrPageNotFound))
}

func TestWikipediaDisambiguation(t *testing.T) {
	srv := wikiServer(t, `{"query":{"pages":[{"title":"Mercury","extract":"Mercury may refer to","pageprops":{"disambiguation":""}}]}}`)
	defer srv.Close()

	w := NewWikipediaWithClient(1000, NewRestClient(srv.URL, 5*time.Second))
	_, err := w.Page(context.Background(), "mercury")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPageNotFound)
	assert.Contains(t, err.Error(), "disambiguation")
}
