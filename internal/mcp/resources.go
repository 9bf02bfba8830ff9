package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/kantoku/internal/model"
)

const (
	scriptURIPrefix   = "kantoku://owners/"
	scriptTypesURI    = "kantoku://script-types"
	scriptURITemplate = "kantoku://owners/{owner_id}/scripts/{script_type}"
)

func (s *Server) registerResources() {
	// kantoku://script-types: built-in script types.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			scriptTypesURI,
			"Script Types",
			mcplib.WithResourceDescription("Script types the dashboard ships with"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleScriptTypes,
	)

	// kantoku://owners/{owner_id}/scripts/{script_type}: current script.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			scriptURITemplate,
			"Current Script",
			mcplib.WithTemplateDescription("Active version of a script, or the newest version if none is active"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleCurrentScript,
	)
}

func (s *Server) handleScriptTypes(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(model.KnownScriptTypes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal script types: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      scriptTypesURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleCurrentScript(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	owner, scriptType, err := parseScriptURI(uri)
	if err != nil {
		return nil, err
	}

	sc, err := s.svc.GetActiveOrLatest(ctx, owner, scriptType)
	if err != nil {
		return nil, fmt.Errorf("mcp: current script: %w", err)
	}

	payload := map[string]any{
		"owner_id":    owner,
		"script_type": scriptType,
		"script":      sc,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal script: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// parseScriptURI splits kantoku://owners/{owner_id}/scripts/{script_type}.
// The owner ID is everything before the last "/scripts/" segment.
func parseScriptURI(uri string) (owner, scriptType string, err error) {
	rest, ok := strings.CutPrefix(uri, scriptURIPrefix)
	if !ok {
		return "", "", fmt.Errorf("mcp: invalid script URI: %s", uri)
	}
	i := strings.LastIndex(rest, "/scripts/")
	if i <= 0 {
		return "", "", fmt.Errorf("mcp: invalid script URI: %s", uri)
	}
	owner, scriptType = rest[:i], rest[i+len("/scripts/"):]
	if scriptType == "" || strings.Contains(scriptType, "/") {
		return "", "", fmt.Errorf("mcp: invalid script URI: %s", uri)
	}
	return owner, scriptType, nil
}
