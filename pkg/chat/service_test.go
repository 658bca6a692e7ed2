package chat

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

func TestHistoryEvents(t *testing.T) {
	events := historyEvents([]Message{
		{ID: uuid.New(), Role: "user", Content: "hello"},
		{ID: uuid.New(), Role: "model", Content: "hi there"},
	})
	require.Len(t, events, 2)

	assert.Equal(t, "user", events[0].Author)
	assert.Equal(t, "user", events[0].LLMResponse.Content.Role)
	assert.Equal(t, "hello", events[0].LLMResponse.Content.Parts[0].Text)

	assert.Equal(t, agentName, events[1].Author)
	assert.Equal(t, "model", events[1].LLMResponse.Content.Role)
}

func TestEventStream(t *testing.T) {
	evt := session.NewEvent("inv")
	evt.LLMResponse = model.LLMResponse{Content: &genai.Content{Parts: []*genai.Part{
		{Text: "Looking it up."},
		{FunctionCall: &genai.FunctionCall{Name: "pubmed_search"}},
		{FunctionResponse: &genai.FunctionResponse{Name: "pubmed_search"}},
	}}}

	var types []string
	for _, se := range eventStream(evt) {
		types = append(types, se.Type)
	}
	assert.Equal(t, []string{"content", "tool_call", "tool_result"}, types)
	assert.Empty(t, eventStream(nil))
	assert.Empty(t, eventStream(session.NewEvent("empty")))
}

func TestParseTitle(t *testing.T) {
	title, err := parseTitle(`{"title": "  Gene Editing Basics "}`)
	require.NoError(t, err)
	assert.Equal(t, "Gene Editing Basics", title)

	_, err = parseTitle("not json")
	assert.Error(t, err)
}
