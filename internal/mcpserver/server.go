// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the content pipeline to LLM clients over stdio.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/generation"
	"github.com/starford/scribe/internal/keywords"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/pipeline"
	"github.com/starford/scribe/internal/runstore"
)

// ContractURI is the resource URI of the document contract.
const ContractURI = "scribe://document-contract"

// Server wraps the MCP server with scribe tools.
type Server struct {
	mcp *server.MCPServer
	svc *pipeline.Service
}

// New creates an MCP server with every scribe tool registered.
func New(svc *pipeline.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Scribe",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("generate_content",
		mcp.WithDescription("Generate one long-form SEO document for a keyword. "+
			"The result follows the document contract (see get_document_contract)."),
		mcp.WithString("keyword", mcp.Required(), mcp.Description("Target keyword or phrase")),
		mcp.WithString("language", mcp.Description("Language code, e.g. en")),
		mcp.WithString("category", mcp.Description("Optional topical category")),
		mcp.WithNumber("target_word_count", mcp.Description("Desired body length in words")),
		mcp.WithBoolean("authority", mcp.Description("Write in an expert, authoritative tone")),
	), s.generateContent)

	s.mcp.AddTool(mcp.NewTool("score_content",
		mcp.WithDescription("Score HTML markup, or a generated document as JSON, against a keyword. "+
			"Returns technical and semantic sub-scores, grade, issues and recommendations."),
		mcp.WithString("keyword", mcp.Required(), mcp.Description("Keyword the page targets")),
		mcp.WithString("markup", mcp.Description("HTML of the page")),
		mcp.WithString("document", mcp.Description("Generated document as JSON; used instead of markup when set")),
	), s.scoreContent)

	s.mcp.AddTool(mcp.NewTool("enrich_keywords",
		mcp.WithDescription("Look up search volume, competition and CPC for keywords and rank them by opportunity."),
		mcp.WithArray("keywords", mcp.Required(), mcp.Description("Keywords to look up"), mcp.WithStringItems()),
		mcp.WithString("language", mcp.Description("Language code")),
		mcp.WithString("location", mcp.Description("Location name, e.g. United States")),
		mcp.WithString("format", mcp.Description("json (default) or table")),
	), s.enrichKeywords)

	s.mcp.AddTool(mcp.NewTool("optimize_content",
		mcp.WithDescription("Generate and score repeatedly, feeding issues back, until the score reaches "+
			"min_score or max_attempts is spent. Returns the best attempt and its history."),
		mcp.WithString("keyword", mcp.Required(), mcp.Description("Target keyword or phrase")),
		mcp.WithString("language", mcp.Description("Language code, e.g. en")),
		mcp.WithString("category", mcp.Description("Optional topical category")),
		mcp.WithNumber("target_word_count", mcp.Description("Desired body length in words")),
		mcp.WithBoolean("authority", mcp.Description("Write in an expert, authoritative tone")),
		mcp.WithNumber("min_score", mcp.Description("Acceptance threshold, 0-100")),
		mcp.WithNumber("max_attempts", mcp.Description("Generation attempts to spend at most")),
	), s.optimizeContent)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent optimization runs, or search them by keyword and copy."),
		mcp.WithString("query", mcp.Description("Optional search text")),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to return")),
	), s.listRuns)

	s.mcp.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Read one stored optimization run with its document and score."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Run ID")),
	), s.getRun)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the output format every generated document follows."),
	), s.getDocumentContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Document Contract",
			mcp.WithResourceDescription("JSON shape and length rules of generated documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func contentRequest(req mcp.CallToolRequest) (models.ContentRequest, error) {
	kw, err := req.RequireString("keyword")
	if err != nil {
		return models.ContentRequest{}, err
	}
	return models.ContentRequest{
		Keyword:         kw,
		Language:        req.GetString("language", ""),
		Category:        req.GetString("category", ""),
		TargetWordCount: req.GetInt("target_word_count", 0),
		Authority:       req.GetBool("authority", false),
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError renders a service error for the client.
func toolError(err error) *mcp.CallToolResult {
	var ext *apperr.ExternalError
	if errors.As(err, &ext) {
		return mcp.NewToolResultError(fmt.Sprintf("upstream %s error (%s): %v", ext.Service, ext.Kind, ext.Err))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) generateContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cr, err := contentRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Generate(ctx, cr)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(doc)
}

func (s *Server) scoreContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kw, err := req.RequireString("keyword")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := pipeline.ScoreInput{Keyword: kw, Markup: req.GetString("markup", "")}
	if raw := strings.TrimSpace(req.GetString("document", "")); raw != "" {
		var doc models.GeneratedDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return mcp.NewToolResultError("document is not valid JSON: " + err.Error()), nil
		}
		in.Document = &doc
	}
	res, err := s.svc.Score(ctx, in)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res)
}

func (s *Server) enrichKeywords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kws := req.GetStringSlice("keywords", nil)
	if len(kws) == 0 {
		return mcp.NewToolResultError("keywords must hold at least one keyword"), nil
	}
	out, err := s.svc.Enrich(ctx, pipeline.EnrichInput{
		Keywords: kws,
		Language: req.GetString("language", ""),
		Location: req.GetString("location", ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	if req.GetString("format", "json") == "table" {
		var buf bytes.Buffer
		if err := keywords.WriteTable(&buf, out); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(buf.String()), nil
	}
	return jsonResult(out)
}

func (s *Server) optimizeContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cr, err := contentRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	run, err := s.svc.Optimize(ctx, pipeline.OptimizeInput{
		Request:     cr,
		MinScore:    req.GetInt("min_score", 0),
		MaxAttempts: req.GetInt("max_attempts", 0),
		Source:      pipeline.SourceMCP,
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(run)
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	var (
		runs []runstore.RunSummary
		err  error
	)
	if q := strings.TrimSpace(req.GetString("query", "")); q != "" {
		runs, err = s.svc.SearchRuns(ctx, q, limit)
	} else {
		runs, _, err = s.svc.ListRuns(ctx, runstore.ListOptions{Limit: limit})
	}
	if err != nil {
		return toolError(err), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("no runs found"), nil
	}
	return jsonResult(runs)
}

func (s *Server) getRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	run, err := s.svc.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return toolError(err), nil
	}
	return jsonResult(run)
}

func (s *Server) getDocumentContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(generation.DocumentContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     generation.DocumentContract,
		},
	}, nil
}
