package server

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mikeboe/researchify/pkg/research"
)

// MCPVersion is the version reported to MCP clients.
const MCPVersion = "0.1.0"

type GenerateReportInput struct {
	Topic     string `json:"topic" jsonschema:"the research topic"`
	SessionID string `json:"session_id,omitempty" jsonschema:"optional document session whose uploads are included"`
}

type GenerateReportOutput struct {
	Report   string   `json:"report"`
	Sources  []string `json:"sources"`
	Warnings []string `json:"warnings,omitempty"`
}

type SearchSourcesInput struct {
	Topic     string `json:"topic" jsonschema:"the research topic"`
	SessionID string `json:"session_id,omitempty" jsonschema:"optional document session to search as well"`
}

type SearchSourcesOutput struct {
	Results  []research.SearchResult `json:"results"`
	Count    int                     `json:"count"`
	Warnings []string                `json:"warnings,omitempty"`
}

type SearchLocalDocumentsInput struct {
	SessionID string `json:"session_id" jsonschema:"the document session to search"`
	Query     string `json:"query" jsonschema:"the search query"`
}

type SearchLocalDocumentsOutput struct {
	Content string `json:"content"`
}

// NewMCPServer exposes report generation and search as MCP tools.
func NewMCPServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "researchify",
		Version: MCPVersion,
	}, nil)

	t := &mcpTools{svc: svc}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_report",
		Description: "Search the web, PubMed, Wikipedia and uploaded documents for a topic and write a markdown report",
	}, t.generateReport)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_sources",
		Description: "Collect search results for a topic from every configured provider without writing a report",
	}, t.searchSources)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_local_documents",
		Description: "Semantic search over the documents uploaded to a session",
	}, t.searchLocalDocuments)

	return server
}

// NewMCPHandler serves the MCP server over streamable HTTP.
func NewMCPHandler(svc *Service) http.Handler {
	server := NewMCPServer(svc)
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return server
	}, nil)
}

type mcpTools struct {
	svc *Service
}

func (t *mcpTools) generateReport(ctx context.Context, _ *mcp.CallToolRequest, input GenerateReportInput) (*mcp.CallToolResult, GenerateReportOutput, error) {
	report, err := t.svc.GenerateReport(ctx, ReportRequest{Topic: input.Topic, SessionID: input.SessionID})
	if err != nil {
		return nil, GenerateReportOutput{}, err
	}

	out := GenerateReportOutput{Report: report.Markdown, Warnings: report.Warnings}
	for _, s := range report.Sources {
		out.Sources = append(out.Sources, s.URL)
	}
	return nil, out, nil
}

func (t *mcpTools) searchSources(ctx context.Context, _ *mcp.CallToolRequest, input SearchSourcesInput) (*mcp.CallToolResult, SearchSourcesOutput, error) {
	results, warnings, err := t.svc.SearchSources(ctx, input.Topic, input.SessionID)
	if err != nil {
		return nil, SearchSourcesOutput{}, err
	}
	if results == nil {
		results = []research.SearchResult{}
	}
	return nil, SearchSourcesOutput{Results: results, Count: len(results), Warnings: warnings}, nil
}

func (t *mcpTools) searchLocalDocuments(ctx context.Context, _ *mcp.CallToolRequest, input SearchLocalDocumentsInput) (*mcp.CallToolResult, SearchLocalDocumentsOutput, error) {
	content, err := t.svc.SearchLocalDocuments(ctx, input.SessionID, input.Query)
	if err != nil {
		return nil, SearchLocalDocumentsOutput{}, err
	}
	return nil, SearchLocalDocumentsOutput{Content: content}, nil
}
