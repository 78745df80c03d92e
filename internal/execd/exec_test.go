package execd

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestExecuteSuccess(t *testing.T) {
	e := NewExecutor(t.TempDir())
	result := e.Execute(context.Background(), "echo hi", nil)
	if !result.Success {
		t.Fatalf("expected success, got error %+v", result.Error)
	}
	if result.Data.Stdout != "hi\n" {
		t.Fatalf("stdout = %q, want %q", result.Data.Stdout, "hi\n")
	}
	if result.Data.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", result.Data.ExitCode)
	}
}

func TestExecuteNonZeroExit(t *testing.T) {
	e := NewExecutor(t.TempDir())
	result := e.Execute(context.Background(), "exit 7", nil)
	if result.Success {
		t.Fatal("expected failure for nonzero exit")
	}
	if result.Error == nil || result.Error.Code != "command_failed" {
		t.Fatalf("error = %+v, want command_failed", result.Error)
	}
	if result.Data.ExitCode != 7 {
		t.Fatalf("exit code = %d, want 7", result.Data.ExitCode)
	}
}

func TestExecuteWithStdin(t *testing.T) {
	e := NewExecutor(t.TempDir())
	input := "hello from stdin\n"
	result := e.Execute(context.Background(), "cat", &input)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Error)
	}
	if result.Data.Stdout != input {
		t.Fatalf("stdout = %q, want %q", result.Data.Stdout, input)
	}
}

func TestExecuteNoOutputFilesSerializesEmptyArray(t *testing.T) {
	e := NewExecutor(t.TempDir())
	result := e.Execute(context.Background(), "echo hi", nil)
	if result.Files == nil {
		t.Fatal("expected Files to be a non-nil empty slice, not nil")
	}

	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"files":[]`) {
		t.Fatalf("json = %s, want it to contain \"files\":[]", raw)
	}
}

func TestCollectFilesEmptyDirReturnsNonNilSlice(t *testing.T) {
	files := CollectFiles(t.TempDir())
	if files == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(files) != 0 {
		t.Fatalf("expected 0 files, got %d", len(files))
	}
}

func TestCollectFilesSkipsResponseFile(t *testing.T) {
	dir := t.TempDir()
	e := NewExecutor(dir)
	_ = e.Execute(context.Background(), "echo -n data > out.txt; echo -n resp > "+responseFileName, nil)

	files := CollectFiles(dir)
	names := map[string]bool{}
	for _, f := range files {
		names[f.Path] = true
	}
	if !names["out.txt"] {
		t.Fatalf("expected out.txt in collected files, got %+v", files)
	}
	if names[responseFileName] {
		t.Fatalf("response file must be skipped, got %+v", files)
	}
}

func TestCollectFilesDetectsBinary(t *testing.T) {
	dir := t.TempDir()
	e := NewExecutor(dir)
	_ = e.Execute(context.Background(), "printf 'a\\x00b' > bin.dat", nil)

	files := CollectFiles(dir)
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if !files[0].Binary {
		t.Fatalf("expected binary=true for file containing NUL byte")
	}
}
