package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/researchify/pkg/localdocs"
	"github.com/mikeboe/researchify/pkg/research"
)

func TestNewMCPServer(t *testing.T) {
	f := newFixture(t)
	assert.NotNil(t, NewMCPServer(f.svc))
	assert.NotNil(t, NewMCPHandler(f.svc))
}

func TestMCPGenerateReport(t *testing.T) {
	f := newFixture(t, wiki("Glaciers carve valleys."))
	tools := &mcpTools{svc: f.svc}

	result, out, err := tools.generateReport(context.Background(), nil, GenerateReportInput{Topic: "glaciers"})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, "# Report\n\nBody", out.Report)
	assert.Equal(t, []string{"https://en.wikipedia.org/wiki/Topic"}, out.Sources)

	_, _, err = tools.generateReport(context.Background(), nil, GenerateReportInput{Topic: ""})
	assert.ErrorIs(t, err, research.ErrEmptyTopic)
}

func TestMCPSearchSources(t *testing.T) {
	f := newFixture(t)
	tools := &mcpTools{svc: f.svc}

	_, out, err := tools.searchSources(context.Background(), nil, SearchSourcesInput{Topic: "anything"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count)
	assert.NotNil(t, out.Results)
}

func TestMCPSearchLocalDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tools := &mcpTools{svc: f.svc}

	_, _, err := tools.searchLocalDocuments(ctx, nil, SearchLocalDocumentsInput{SessionID: "nope", Query: "q"})
	assert.ErrorIs(t, err, localdocs.ErrSessionNotFound)

	id, err := f.svc.CreateSession(ctx)
	require.NoError(t, err)
	_, err = f.svc.IngestDocuments(ctx, id, []localdocs.Upload{{Name: "a.csv", Data: []byte("ozone")}}, false)
	require.NoError(t, err)

	_, out, err := tools.searchLocalDocuments(ctx, nil, SearchLocalDocumentsInput{SessionID: id, Query: "ozone"})
	require.NoError(t, err)
	assert.Contains(t, out.Content, "ozone")
}
