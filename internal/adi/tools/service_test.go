package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestListToolsIncludesBashBuiltin(t *testing.T) {
	s := NewService("tools")
	res, svcErr := s.Handle(context.Background(), "list_tools", nil)
	if svcErr != nil {
		t.Fatalf("list_tools: %v", svcErr)
	}
	infos := res.Success.([]ToolInfo)
	found := false
	for _, info := range infos {
		if info.Name == "bash" && info.Source == "builtin" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bash builtin in %+v", infos)
	}
}

func TestCallToolRunsBash(t *testing.T) {
	s := NewService("tools")
	res, svcErr := s.Handle(context.Background(), "call_tool", map[string]any{
		"tool":      "bash",
		"arguments": map[string]any{"command": "echo hi"},
	})
	if svcErr != nil {
		t.Fatalf("call_tool: %v", svcErr)
	}
	result := res.Success.(*Result)
	if result.Output != "hi" {
		t.Fatalf("output = %q", result.Output)
	}
}

func TestCallToolUnknownToolReportsError(t *testing.T) {
	s := NewService("tools")
	res, svcErr := s.Handle(context.Background(), "call_tool", map[string]any{"tool": "nope"})
	if svcErr != nil {
		t.Fatalf("call_tool: %v", svcErr)
	}
	result := res.Success.(*Result)
	if result.Error == "" {
		t.Fatal("expected an error result for unknown tool")
	}
}

func TestCallToolMissingToolParam(t *testing.T) {
	s := NewService("tools")
	_, svcErr := s.Handle(context.Background(), "call_tool", map[string]any{})
	if svcErr == nil || svcErr.Code != "invalid_params" {
		t.Fatalf("expected invalid_params, got %+v", svcErr)
	}
}

func TestWatchPathEmitsFsChanged(t *testing.T) {
	dir := t.TempDir()
	s := NewService("tools")
	defer s.CloseProviders()

	sub, svcErr := s.Subscribe(context.Background(), "fs.changed", nil)
	if svcErr != nil {
		t.Fatalf("subscribe: %v", svcErr)
	}

	if _, svcErr := s.Handle(context.Background(), "watch_path", map[string]any{"path": dir}); svcErr != nil {
		t.Fatalf("watch_path: %v", svcErr)
	}

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-sub:
		if ev.Event != "fs.changed" {
			t.Fatalf("event = %q", ev.Event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fs.changed event")
	}
}

func TestUnwatchPathStopsWatching(t *testing.T) {
	dir := t.TempDir()
	s := NewService("tools")
	defer s.CloseProviders()

	if _, svcErr := s.Handle(context.Background(), "watch_path", map[string]any{"path": dir}); svcErr != nil {
		t.Fatalf("watch_path: %v", svcErr)
	}
	if _, svcErr := s.Handle(context.Background(), "unwatch_path", map[string]any{"path": dir}); svcErr != nil {
		t.Fatalf("unwatch_path: %v", svcErr)
	}
	s.watchMu.Lock()
	_, still := s.watchers[dir]
	s.watchMu.Unlock()
	if still {
		t.Fatal("expected watcher to be removed")
	}
}
