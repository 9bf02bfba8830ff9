package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/kantoku/internal/diff"
	"github.com/ashita-ai/kantoku/internal/model"
	"github.com/ashita-ai/kantoku/internal/service/scripts"
	"github.com/ashita-ai/kantoku/internal/storage"
	"github.com/ashita-ai/kantoku/internal/substitute"
)

func keyParams() []mcplib.ToolOption {
	return []mcplib.ToolOption{
		mcplib.WithString("owner_id",
			mcplib.Description("Owner of the script, usually the channel or user ID"),
			mcplib.Required(),
		),
		mcplib.WithString("script_type",
			mcplib.Description("Script type slug, e.g. title_guide, description_guide, script_guide, thumbnail_guide, strategy_generation, channel_analysis"),
			mcplib.Required(),
		),
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("kantoku_publish", append(keyParams(),
			mcplib.WithDescription(`Publish a new version of an instruction script.

Versions are numbered 1, 2, 3... per (owner_id, script_type) and never change
once stored. Set activate=true to make the new version the one renders use.
Call kantoku_preview first to review the change.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithString("content",
				mcplib.Description("Full script text. May contain {{tag}} placeholders."),
				mcplib.Required(),
			),
			mcplib.WithString("trained_by",
				mcplib.Description("Optional note on what produced this version, e.g. a model name or editor"),
			),
			mcplib.WithBoolean("activate",
				mcplib.Description("Make this version active immediately"),
				mcplib.DefaultBool(false),
			),
		)...),
		s.handlePublish,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("kantoku_versions", append(keyParams(),
			mcplib.WithDescription("List every version of a script, newest first, with a root hash over the history."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
		)...),
		s.handleVersions,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("kantoku_activate", append(keyParams(),
			mcplib.WithDescription("Make one stored version the active version. Safe to repeat."),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithNumber("version",
				mcplib.Description("Version number to activate"),
				mcplib.Required(),
				mcplib.Min(1),
			),
		)...),
		s.handleActivate,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("kantoku_render", append(keyParams(),
			mcplib.WithDescription(`Render the current script (active version, else newest) with values
substituted into its {{tag}} placeholders. Tags without a value are left in
place and listed under unresolved.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithObject("values",
				mcplib.Description("Tag values, e.g. {\"topic\": \"sourdough\"}"),
			),
		)...),
		s.handleRender,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("kantoku_preview", append(keyParams(),
			mcplib.WithDescription("Diff a candidate script against the current one without storing anything."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithString("content",
				mcplib.Description("Candidate script text"),
				mcplib.Required(),
			),
			mcplib.WithString("algorithm",
				mcplib.Description("Diff algorithm"),
				mcplib.Enum(diff.AlgorithmGreedy, diff.AlgorithmMatcher),
			),
		)...),
		s.handlePreview,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("kantoku_substitute",
			mcplib.WithDescription("Replace {{tag}} placeholders in any text. Nothing is stored."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("template",
				mcplib.Description("Text containing {{tag}} placeholders"),
				mcplib.Required(),
			),
			mcplib.WithObject("values",
				mcplib.Description("Tag values"),
			),
		),
		s.handleSubstitute,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("kantoku_diff",
			mcplib.WithDescription("Line diff between two texts. Each line is same, added or removed."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("original", mcplib.Description("Original text"), mcplib.Required()),
			mcplib.WithString("candidate", mcplib.Description("Candidate text"), mcplib.Required()),
			mcplib.WithString("algorithm",
				mcplib.Description("Diff algorithm"),
				mcplib.Enum(diff.AlgorithmGreedy, diff.AlgorithmMatcher),
			),
		),
		s.handleDiff,
	)
}

func (s *Server) handlePublish(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	in := scripts.PublishInput{
		OwnerID:    request.GetString("owner_id", ""),
		ScriptType: request.GetString("script_type", ""),
		Content:    request.GetString("content", ""),
		Activate:   request.GetBool("activate", false),
	}
	if tb := request.GetString("trained_by", ""); tb != "" {
		in.TrainedBy = &tb
	}

	sc, err := s.svc.Publish(ctx, in)
	if err != nil {
		return s.toolError("publish", err), nil
	}
	return jsonResult(sc)
}

func (s *Server) handleVersions(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	hist, err := s.svc.History(ctx, request.GetString("owner_id", ""), request.GetString("script_type", ""))
	if err != nil {
		return s.toolError("versions", err), nil
	}
	return jsonResult(hist)
}

func (s *Server) handleActivate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	sc, err := s.svc.SetActiveVersion(ctx,
		request.GetString("owner_id", ""),
		request.GetString("script_type", ""),
		request.GetInt("version", 0),
	)
	if err != nil {
		return s.toolError("activate", err), nil
	}
	return jsonResult(sc)
}

func (s *Server) handleRender(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	values, err := valuesArg(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	out, err := s.svc.Render(ctx, request.GetString("owner_id", ""), request.GetString("script_type", ""), values)
	if err != nil {
		return s.toolError("render", err), nil
	}
	return jsonResult(out)
}

func (s *Server) handlePreview(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	p, err := s.svc.Preview(ctx,
		request.GetString("owner_id", ""),
		request.GetString("script_type", ""),
		request.GetString("content", ""),
		request.GetString("algorithm", ""),
	)
	if err != nil {
		return s.toolError("preview", err), nil
	}
	return jsonResult(p)
}

func (s *Server) handleSubstitute(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	values, err := valuesArg(request)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	template := request.GetString("template", "")
	return jsonResult(model.SubstituteResponse{
		Text:       substitute.Apply(template, values),
		Unresolved: substitute.Unresolved(template, values),
	})
}

func (s *Server) handleDiff(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	algorithm := request.GetString("algorithm", "")
	if err := diff.ValidateAlgorithm(algorithm); err != nil {
		return errorResult(err.Error()), nil
	}
	res := diff.Compute(algorithm, request.GetString("original", ""), request.GetString("candidate", ""))
	return jsonResult(struct {
		diff.Result
		Unified string `json:"unified"`
	}{res, diff.Unified(res)})
}

// toolError turns a service error into an IsError result. Unexpected
// failures are logged and reported without internal detail.
func (s *Server) toolError(op string, err error) *mcplib.CallToolResult {
	var vErr *scripts.ValidationError
	switch {
	case errors.As(err, &vErr):
		return errorResult(vErr.Error())
	case errors.Is(err, storage.ErrNotFound):
		return errorResult(op + ": not found")
	case errors.Is(err, storage.ErrVersionConflict):
		return errorResult(op + ": concurrent publish, try again")
	default:
		s.logger.Error("mcp: tool failed", "tool", op, "error", err)
		return errorResult(op + ": internal error")
	}
}

// valuesArg reads the optional "values" object. Null entries become empty
// strings; other scalars are formatted with %v.
func valuesArg(request mcplib.CallToolRequest) (map[string]string, error) {
	raw, ok := request.GetArguments()["values"]
	if !ok || raw == nil {
		return map[string]string{}, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("values must be an object of tag names to strings")
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(obj))
	for _, k := range keys {
		switch v := obj[k].(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = v
		case map[string]any, []any:
			return nil, fmt.Errorf("values.%s must be a string", k)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out, nil
}
