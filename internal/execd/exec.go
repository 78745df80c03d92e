package execd

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/adi-family/cocoon/internal/signaling"
)

// Executor runs one-shot shell commands under /bin/sh -c and reports the
// captured stdout/stderr/exit code alongside any files collected from
// OutputDir.
type Executor struct {
	OutputDir string
}

func NewExecutor(outputDir string) *Executor {
	return &Executor{OutputDir: outputDir}
}

// Execute spawns the command, optionally feeding stdin, and waits for exit.
// It never returns a Go error for command failure — failures are encoded in
// the returned ExecuteResult per the wire error taxonomy.
func (e *Executor) Execute(ctx context.Context, command string, stdin *string) signaling.ExecuteResult {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader([]byte(*stdin))
	}

	if err := cmd.Start(); err != nil {
		return failedResult("spawn_failed", err)
	}

	waitErr := cmd.Wait()
	files := CollectFiles(e.OutputDir)

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return signaling.ExecuteResult{
				Type:    signaling.RespExecuteResult,
				Success: false,
				Data: &signaling.ExecuteResultData{
					Stdout:   stdout.String(),
					Stderr:   stderr.String(),
					ExitCode: exitErr.ExitCode(),
				},
				Error: &signaling.ResponseError{
					Code:    "command_failed",
					Details: fmt.Sprintf("exit code %d", exitErr.ExitCode()),
				},
				Files: files,
			}
		}
		return signaling.ExecuteResult{
			Type:    signaling.RespExecuteResult,
			Success: false,
			Error:   &signaling.ResponseError{Code: "execution_failed", Details: waitErr.Error()},
			Files:   files,
		}
	}

	return signaling.ExecuteResult{
		Type:    signaling.RespExecuteResult,
		Success: true,
		Data: &signaling.ExecuteResultData{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: 0,
		},
		Files: files,
	}
}

func failedResult(code string, err error) signaling.ExecuteResult {
	return signaling.ExecuteResult{
		Type:    signaling.RespExecuteResult,
		Success: false,
		Error:   &signaling.ResponseError{Code: code, Details: err.Error()},
		Files:   []signaling.CollectedFile{},
	}
}
