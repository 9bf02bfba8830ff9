package mcp

import (
	"context"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/kantoku/internal/storage"
)

func (s *Server) registerPrompts() {
	// revise-script: walks through preview then publish for one script.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("revise-script",
			mcplib.WithPromptDescription("Revise an instruction script: read it, preview the change, then publish"),
			mcplib.WithArgument("owner_id",
				mcplib.ArgumentDescription("Owner of the script"),
				mcplib.RequiredArgument(),
			),
			mcplib.WithArgument("script_type",
				mcplib.ArgumentDescription("Script type to revise, e.g. title_guide"),
				mcplib.RequiredArgument(),
			),
			mcplib.WithArgument("goal",
				mcplib.ArgumentDescription("What the revision should achieve"),
			),
		),
		s.handleReviseScriptPrompt,
	)

	// authoring-guide: explains tags, versions and activation.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("authoring-guide",
			mcplib.WithPromptDescription("How Kantoku scripts, {{tags}} and versions work"),
		),
		s.handleAuthoringGuidePrompt,
	)
}

func (s *Server) handleReviseScriptPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	owner := request.Params.Arguments["owner_id"]
	scriptType := request.Params.Arguments["script_type"]
	if owner == "" || scriptType == "" {
		return nil, fmt.Errorf("owner_id and script_type arguments are required")
	}
	goal := request.Params.Arguments["goal"]
	if goal == "" {
		goal = "make the script clearer and more effective"
	}

	current := "There is no version yet; you are writing version 1."
	sc, err := s.svc.GetActiveOrLatest(ctx, owner, scriptType)
	switch {
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("mcp: revise prompt: %w", err)
	case sc != nil:
		current = fmt.Sprintf("The current script is version %d:\n\n%s", sc.Version, sc.Content)
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Revise the %s script for %s", scriptType, owner),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Revise the %[2]s script for owner %[1]s. Goal: %[3]s.

%[4]s

1. WRITE the full revised script. Keep existing {{tag}} placeholders unless the
   goal requires changing them.

2. CALL kantoku_preview with owner_id="%[1]s", script_type="%[2]s" and your
   revision as content. Check that only the intended lines are added or removed.

3. CALL kantoku_publish with the same content. Pass activate=true only if the
   revision should be used immediately.`, owner, scriptType, goal, current),
				},
			},
		},
	}, nil
}

func (s *Server) handleAuthoringGuidePrompt(_ context.Context, _ mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	return &mcplib.GetPromptResult{
		Description: "Kantoku script authoring guide",
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: `Kantoku keeps the instruction scripts that drive title, description,
thumbnail and strategy generation for a YouTube channel.

## Versions

Each (owner_id, script_type) has versions 1, 2, 3... Published text never
changes. At most one version is active; renders use the active version, or
the newest one when none is active.

## Tags

Write {{name}} where a value should go. Rendering replaces every occurrence
of a tag that has a value, including an empty one. Tags without a value are
left as written and reported as unresolved.

## Tools

- kantoku_render: current script with values filled in
- kantoku_preview: diff a candidate against the current script
- kantoku_publish: store a new version (optionally activate it)
- kantoku_versions: history, newest first
- kantoku_activate: switch the active version
- kantoku_substitute / kantoku_diff: work on arbitrary text`,
				},
			},
		},
	}, nil
}
