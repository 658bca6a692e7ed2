package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const liteFixture = `<html><body><table>
<tr><td>1.</td><td><a rel="nofollow" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&amp;rut=x" class='result-link'>The Go Programming Language</a></td></tr>
<tr><td></td><td class='result-snippet'>Go is an <b>open source</b> programming language.</td></tr>
<tr><td>2.</td><td><a rel="nofollow" href="https://en.wikipedia.org/wiki/Go_(programming_language)" class='result-link'>Go (programming language)</a></td></tr>
<tr><td></td><td class='result-snippet'>Go is a statically typed language.</td></tr>
<tr><td>3.</td><td><a rel="nofollow" href="https://example.com/third" class='result-link'>Third</a></td></tr>
<tr><td></td><td class='result-snippet'>third snippet</td></tr>
</table></body></html>`

func TestParseLiteResults(t *testing.T) {
	results, err := parseLiteResults([]byte(liteFixture), 2)
	require.NoError(t, err)
	assert.Equal(t, []Result{
		{Title: "The Go Programming Language", URL: "https://go.dev/", Content: "Go is an open source programming language."},
		{Title: "Go (programming language)", URL: "https://en.wikipedia.org/wiki/Go_(programming_language)", Content: "Go is a statically typed language."},
	}, results)
}

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lite/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "golang", r.PostForm.Get("q"))
		_, _ = w.Write([]byte(liteFixture))
	}))
	defer srv.Close()

	d := NewDuckDuckGoWithClient(5, NewRestClient(srv.URL, 5*time.Second))
	results, err := d.Search(context.Background(), "golang")
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestDuckDuckGoEmptyQuery(t *testing.T) {
	_, err := NewDuckDuckGo(2).Search(context.Background(), "  ")
	assert.Error(t, err)
}
