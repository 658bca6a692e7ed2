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

const efetchFixture = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">111</PMID>
      <Article>
        <ArticleTitle>Effects of <i>caffeine</i> on sleep</ArticleTitle>
        <Abstract>
          <AbstractText Label="BACKGROUND">Caffeine is <i>widely</i> consumed.</AbstractText>
          <AbstractText Label="RESULTS">Sleep latency increased.</AbstractText>
        </Abstract>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">222</PMID>
      <Article>
        <ArticleTitle>No abstract here</ArticleTitle>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func TestPubMedSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "pubmed", q.Get("db"))
		assert.Equal(t, "researchify", q.Get("tool"))

		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "caffeine sleep", q.Get("term"))
			assert.Equal(t, "10", q.Get("retmax"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"esearchresult":{"idlist":["111","222"]}}`))
		case "/efetch.fcgi":
			assert.Equal(t, "111,222", q.Get("id"))
			w.Header().Set("Content-Type", "text/xml")
			_, _ = w.Write([]byte(efetchFixture))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	pm := NewPubMedWithClient(0, "researchify", "", NewRestClient(srv.URL, 5*time.Second))
	results, err := pm.Search(context.Background(), "caffeine sleep")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "https://www.ncbi.nlm.nih.gov/pubmed/111", results[0].URL)
	assert.Equal(t, "Effects of caffeine on sleep", results[0].Title)
	assert.Equal(t, "BACKGROUND: Caffeine is widely consumed.\nRESULTS: Sleep latency increased.", results[0].Content)
}

func TestPubMedNoHits(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"esearchresult":{"idlist":[]}}`))
	}))
	defer srv.Close()

	pm := NewPubMedWithClient(5, "", "", NewRestClient(srv.URL, 5*time.Second))
	results, err := pm.Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1, calls, "efetch must not run without ids")
}
