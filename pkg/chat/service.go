package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"github.com/mikeboe/researchify/pkg/config"
	"github.com/mikeboe/researchify/pkg/localdocs"
	"github.com/mikeboe/researchify/pkg/research/tools"
)

const (
	appName   = "researchify"
	agentName = "research_assistant"
	userID    = "user"

	agentInstruction = "You are a helpful research assistant. Answer the user's questions using the available tools. " +
		"Use wikipedia_search for background on people, places and concepts, pubmed_search for scientific and medical questions " +
		"and duckduckgo_search for current events. When search_local_documents is available, check the user's documents first. " +
		"Cite the sources you used at the end of the answer."
)

type Service struct {
	Store      Store
	Client     *genai.Client
	Model      model.LLM
	TitleModel string

	wikipedia  tools.Searcher
	pubmed     tools.Searcher
	duckduckgo tools.Searcher
}

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// StreamEvent represents a single event in the chat stream
type StreamEvent struct {
	Type    string      `json:"type"` // "content", "tool_call", "tool_result", "error", "done"
	Payload interface{} `json:"payload"`
}

func NewService(ctx context.Context, store Store, cfg *config.Config) (*Service, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GoogleApiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	modelClient, err := gemini.NewModel(ctx, cfg.ReasoningModel, &genai.ClientConfig{
		APIKey: cfg.GoogleApiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	return &Service{
		Store:      store,
		Client:     client,
		Model:      modelClient,
		TitleModel: cfg.ReasoningModel,
		wikipedia:  tools.NewWikipedia(cfg.WikipediaExcerpt),
		pubmed:     tools.NewPubMed(cfg.PubMedMaxResults, cfg.PubMedTool, cfg.PubMedEmail),
		duckduckgo: tools.NewDuckDuckGo(cfg.DuckDuckGoMaxResults),
	}, nil
}

// newAgent builds the research agent, with local document tools when lib
// has indexed content.
func (s *Service) newAgent(lib *localdocs.Library) (agent.Agent, error) {
	toolset := NewResearchToolset(s.wikipedia, s.pubmed, s.duckduckgo, lib)

	researchAgent, err := llmagent.New(llmagent.Config{
		Name:        agentName,
		Model:       s.Model,
		Description: "A research assistant with Wikipedia, PubMed, web and local document tools.",
		Instruction: agentInstruction,
		Toolsets: []tool.Toolset{
			toolset,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return researchAgent, nil
}

func (s *Service) CreateConversation(ctx context.Context) (*Conversation, error) {
	return s.Store.CreateConversation(ctx)
}

func (s *Service) ListConversations(ctx context.Context) ([]Conversation, error) {
	return s.Store.ListConversations(ctx)
}

func (s *Service) GetHistory(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	return s.Store.GetHistory(ctx, conversationID)
}

// SendMessage stores the user message, replays the conversation into a fresh
// agent session and streams the agent's answer. lib may be nil.
func (s *Service) SendMessage(ctx context.Context, conversationID uuid.UUID, content string, lib *localdocs.Library) (iter.Seq2[StreamEvent, error], error) {
	history, err := s.Store.GetHistory(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	if _, err := s.Store.AddMessage(ctx, conversationID, "user", content); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	sessionSvc := session.InMemoryService()
	sessionID := conversationID.String()

	createRes, err := sessionSvc.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	for _, evt := range historyEvents(history) {
		if err := sessionSvc.AppendEvent(ctx, createRes.Session, evt); err != nil {
			return nil, fmt.Errorf("failed to replay history: %w", err)
		}
	}

	researchAgent, err := s.newAgent(lib)
	if err != nil {
		return nil, err
	}

	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          researchAgent,
		SessionService: sessionSvc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	userContent := genai.NewContentFromText(content, genai.RoleUser)

	return func(yield func(StreamEvent, error) bool) {
		slog.Info("Starting agent run", "conversation_id", conversationID)
		runCfg := agent.RunConfig{
			StreamingMode: agent.StreamingModeSSE,
		}

		var finalResponse strings.Builder
		streamed := false

		for event, err := range r.Run(ctx, userID, sessionID, userContent, runCfg) {
			if err != nil {
				slog.Error("Agent runner error", "error", err)
				yield(StreamEvent{Type: "error", Payload: err.Error()}, err)
				return
			}

			partial := event != nil && event.LLMResponse.Partial
			for _, se := range eventStream(event) {
				if se.Type == "content" {
					// the final event repeats the text already streamed as partials
					if !partial {
						finalResponse.WriteString(se.Payload.(string))
						if streamed {
							continue
						}
					}
				}
				if !yield(se, nil) {
					return
				}
			}
			streamed = partial
		}

		slog.Info("Agent run completed")

		if _, err := s.Store.AddMessage(ctx, conversationID, "model", finalResponse.String()); err != nil {
			slog.Error("Failed to save model message", "error", err)
		}

		yield(StreamEvent{Type: "done", Payload: "done"}, nil)

		if len(history) < 2 && s.Client != nil {
			go s.generateTitle(conversationID, content, finalResponse.String())
		}
	}, nil
}

// Ask runs one message to completion and returns the final answer.
func (s *Service) Ask(ctx context.Context, conversationID uuid.UUID, content string, lib *localdocs.Library) (string, error) {
	stream, err := s.SendMessage(ctx, conversationID, content, lib)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for evt, err := range stream {
		if err != nil {
			return "", err
		}
		if evt.Type == "content" {
			sb.WriteString(evt.Payload.(string))
		}
	}
	return sb.String(), nil
}

// historyEvents converts stored messages into session events.
func historyEvents(history []Message) []*session.Event {
	events := make([]*session.Event, 0, len(history))
	for _, msg := range history {
		role := genai.RoleUser
		author := "user"
		if msg.Role == "model" {
			role = genai.RoleModel
			author = agentName
		}

		evt := session.NewEvent(uuid.NewString())
		evt.Author = author
		evt.LLMResponse = model.LLMResponse{
			Content: genai.NewContentFromText(msg.Content, genai.Role(role)),
		}
		events = append(events, evt)
	}
	return events
}

// eventStream flattens one agent event into stream events.
func eventStream(event *session.Event) []StreamEvent {
	if event == nil || event.LLMResponse.Content == nil {
		return nil
	}

	var out []StreamEvent
	for _, part := range event.LLMResponse.Content.Parts {
		if part.Text != "" {
			out = append(out, StreamEvent{Type: "content", Payload: part.Text})
		}
		if part.FunctionCall != nil {
			slog.Info("Agent tool call", "tool", part.FunctionCall.Name)
			out = append(out, StreamEvent{Type: "tool_call", Payload: part.FunctionCall})
		}
		if part.FunctionResponse != nil {
			slog.Info("Agent tool result", "tool", part.FunctionResponse.Name)
			out = append(out, StreamEvent{Type: "tool_result", Payload: part.FunctionResponse})
		}
	}
	return out
}

func (s *Service) generateTitle(convID uuid.UUID, userMsg, modelMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prompt := fmt.Sprintf("Generate a short, concise title (max 5 words) for this chat conversation:\nUser: %s\nModel: %s", userMsg, modelMsg)

	returnSchema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title": {
				Type: genai.TypeString,
			},
		},
		Required: []string{"title"},
	}

	resp, err := s.Client.Models.GenerateContent(ctx, s.TitleModel, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   returnSchema,
	})
	if err != nil {
		slog.Error("Failed to generate conversation title", "error", err)
		return
	}

	title, err := parseTitle(resp.Text())
	if err != nil {
		slog.Error("Failed to unmarshal title generation response", "error", err)
		return
	}

	if title != "" {
		if err := s.Store.SetTitle(ctx, convID, title); err != nil {
			slog.Error("Failed to update conversation title", "error", err)
		}
	}
}

func parseTitle(rawJSON string) (string, error) {
	var respData struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(rawJSON), &respData); err != nil {
		return "", err
	}
	return strings.TrimSpace(respData.Title), nil
}
