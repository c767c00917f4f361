package tools

import (
	"context"
	"testing"

	"github.com/flowtwo/graphforge/pkg/provider/llm"
)

func echoTool() Tool {
	return Tool{
		Definition: llm.ToolDefinition{Name: "echo", Description: "echoes args"},
		Handler: func(ctx context.Context, args string) (string, error) {
			return args, nil
		},
	}
}

func TestRegistry_ExecuteDispatchesToRegisteredHandler(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register(echoTool())

	got, err := r.Execute(context.Background(), "echo", `{"a":1}`)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got != `{"a":1}` {
		t.Errorf("Execute() = %q, want args echoed back", got)
	}
}

func TestRegistry_ExecuteUnknownToolReturnsError(t *testing.T) {
	t.Parallel()

	r := New()
	if _, err := r.Execute(context.Background(), "nonexistent", "{}"); err == nil {
		t.Error("Execute() on unregistered tool = nil error, want one")
	}
}

func TestRegistry_DefinitionsReturnsAllRegistered(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register(echoTool())
	r.Register(Tool{
		Definition: llm.ToolDefinition{Name: "other"},
		Handler:    func(ctx context.Context, args string) (string, error) { return "", nil },
	})

	defs := r.Definitions()
	if len(defs) != 2 {
		t.Fatalf("len(Definitions()) = %d, want 2", len(defs))
	}
	names := map[string]bool{}
	for _, d := range defs {
		names[d.Name] = true
	}
	if !names["echo"] || !names["other"] {
		t.Errorf("Definitions() = %v, want both echo and other", defs)
	}
}

func TestRegistry_AllReturnsEveryRegisteredTool(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register(echoTool())
	r.Register(Tool{
		Definition: llm.ToolDefinition{Name: "other"},
		Handler:    func(ctx context.Context, args string) (string, error) { return "", nil },
	})

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("len(All()) = %d, want 2", len(all))
	}

	clone := New()
	for _, t := range all {
		clone.Register(t)
	}
	got, err := clone.Execute(context.Background(), "echo", `{"a":1}`)
	if err != nil {
		t.Fatalf("Execute() on cloned registry error = %v", err)
	}
	if got != `{"a":1}` {
		t.Errorf("Execute() on cloned registry = %q, want args echoed back", got)
	}
}

func TestRegistry_RegisterReplacesSameName(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register(echoTool())
	r.Register(Tool{
		Definition: llm.ToolDefinition{Name: "echo"},
		Handler: func(ctx context.Context, args string) (string, error) {
			return "replaced", nil
		},
	})

	got, err := r.Execute(context.Background(), "echo", "{}")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got != "replaced" {
		t.Errorf("Execute() = %q, want the replacement handler's output", got)
	}
	if len(r.Definitions()) != 1 {
		t.Errorf("len(Definitions()) = %d, want 1 after re-registering the same name", len(r.Definitions()))
	}
}
