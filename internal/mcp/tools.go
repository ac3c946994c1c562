package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xiy/rmm-mcp/internal/reprocess"
	"github.com/xiy/rmm-mcp/pkg/types"
)

// ToolDefinition models MCP tool metadata.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func toolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "memory_add",
			Description: "Store a new memory with its initial inference and valence.",
			InputSchema: jsonSchema(map[string]any{
				"identifier": propString("Unique stable memory identifier."),
				"content":    propString("Immutable source text of the memory."),
				"inference":  propString("Initial interpretive text."),
				"valence":    propNumber("Initial emotional valence in [-1, 1]."),
			}, []string{"identifier", "content", "inference"}),
		},
		{
			Name:        "memory_get",
			Description: "Fetch one memory's full attribute set, including cycle diagnostics.",
			InputSchema: jsonSchema(map[string]any{
				"identifier": propString("Memory identifier."),
			}, []string{"identifier"}),
		},
		{
			Name:        "memory_list",
			Description: "List all stored memories.",
			InputSchema: jsonSchema(map[string]any{}, nil),
		},
		{
			Name:        "memory_reprocess",
			Description: "Run one full reprocessing cycle (reactivate, re-evaluate, rewrite, retain) on a memory.",
			InputSchema: jsonSchema(map[string]any{
				"identifier": propString("Memory identifier to reprocess."),
			}, []string{"identifier"}),
		},
		{
			Name:        "journal_stats",
			Description: "Return cycle journal counters (memories, cycles, outcomes).",
			InputSchema: jsonSchema(map[string]any{}, nil),
		},
	}
}

func jsonSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func propString(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func propNumber(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

func (s *Server) handleToolCall(ctx context.Context, params json.RawMessage) (map[string]any, error) {
	var p struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid tools/call params: %w", err)
	}

	switch p.Name {
	case "memory_add":
		var in types.AddInput
		if err := json.Unmarshal(p.Arguments, &in); err != nil {
			return nil, fmt.Errorf("invalid memory_add arguments: %w", err)
		}
		m, err := s.svc.Add(ctx, in)
		if err != nil {
			return nil, err
		}
		return toolSuccess(m)
	case "memory_get":
		id, err := identifierArg(p.Arguments)
		if err != nil {
			return nil, fmt.Errorf("invalid memory_get arguments: %w", err)
		}
		m, err := s.svc.Get(id)
		if err != nil {
			return nil, err
		}
		return toolSuccess(m)
	case "memory_list":
		return toolSuccess(s.svc.List())
	case "memory_reprocess":
		id, err := identifierArg(p.Arguments)
		if err != nil {
			return nil, fmt.Errorf("invalid memory_reprocess arguments: %w", err)
		}
		rep, err := s.svc.RunCycle(ctx, id)
		if err != nil {
			if errors.Is(err, reprocess.ErrNotFound) {
				return nil, fmt.Errorf("memory %q not found", id)
			}
			return nil, err
		}
		return toolSuccess(rep)
	case "journal_stats":
		if s.stats == nil {
			return nil, errors.New("no journal attached")
		}
		st, err := s.stats.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return toolSuccess(st)
	default:
		return nil, fmt.Errorf("unknown tool %q", p.Name)
	}
}

func identifierArg(raw json.RawMessage) (string, error) {
	var in struct {
		Identifier string `json:"identifier"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return "", err
	}
	if in.Identifier == "" {
		return "", errors.New("identifier is required")
	}
	return in.Identifier, nil
}

func toolSuccess(v any) (map[string]any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"content":           []map[string]any{{"type": "text", "text": string(b)}},
		"structuredContent": v,
		"isError":           false,
	}, nil
}
