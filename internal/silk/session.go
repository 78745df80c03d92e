package silk

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/adi-family/cocoon/internal/ptymgr"
)

const defaultPtyCols = 80
const defaultPtyRows = 24

// RunningCommand tracks one in-flight command, interactive or batch.
type RunningCommand struct {
	ID            string
	Command       string
	Interactive   bool
	PtySessionID  string
}

// Session is a Silk session: cwd, env, shell, and its running commands.
type Session struct {
	ID    string
	Shell string
	Env   map[string]string

	mu       sync.Mutex
	cwd      string
	running  map[string]*RunningCommand
}

// Manager owns all Silk sessions and the PTY manager commands are
// delegated to for interactive tools.
type Manager struct {
	pty *ptymgr.Manager

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(pty *ptymgr.Manager) *Manager {
	return &Manager{pty: pty, sessions: make(map[string]*Session)}
}

// Create opens a new session. cwd defaults to HOME, else "/"; shell
// defaults to $SHELL, else /bin/sh.
func (m *Manager) Create(cwd string, env map[string]string, shell string) *Session {
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	if cwd == "" {
		cwd = os.Getenv("HOME")
	}
	if cwd == "" {
		cwd = "/"
	}
	sess := &Session{
		ID:      uuid.NewString(),
		Shell:   shell,
		Env:     env,
		cwd:     cwd,
		running: make(map[string]*RunningCommand),
	}
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess
}

func (m *Manager) lookup(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok
}

// Lookup exposes session lookup for callers that need to route silk_input
// and silk_resize to a session's delegated interactive command.
func (m *Manager) Lookup(sessionID string) (*Session, bool) {
	return m.lookup(sessionID)
}

// Close removes a session; any outstanding PTY sessions it started are
// reaped independently by the PTY manager.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

// ExecuteOutcome is returned synchronously by Execute; batch output is
// delivered separately via the onOutput/onCompleted callbacks, mirroring
// the upstream frames described in the component design.
type ExecuteOutcome struct {
	Interactive  bool
	PtySessionID string
}

// OutputChunk is one streamed batch-output frame.
type OutputChunk struct {
	SessionID string
	CommandID string
	Stream    string // "stdout" or "stderr"
	Data      string
	HTML      []HTMLSpan
}

// CommandCompleted is posted once a batch command's process exits.
type CommandCompleted struct {
	SessionID string
	CommandID string
	ExitCode  int
	CWD       string
}

// Execute classifies the command. If interactive, it records the running
// command and creates a PTY session for the caller, returning its id. If
// batch, it spawns `<shell> -c <command>`, streams output chunks through
// onOutput, updates cwd after a successful `cd`, and then calls
// onCompleted once with the resulting cwd.
func (m *Manager) Execute(
	ctx context.Context,
	sessionID, command, commandID string,
	onOutput func(OutputChunk),
	onCompleted func(CommandCompleted),
) (ExecuteOutcome, error) {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return ExecuteOutcome{}, errSessionNotFound
	}

	if IsInteractive(command) {
		ptyID, err := m.pty.Create(command, defaultPtyCols, defaultPtyRows, sess.Env)
		if err != nil {
			return ExecuteOutcome{}, err
		}
		sess.mu.Lock()
		sess.running[commandID] = &RunningCommand{ID: commandID, Command: command, Interactive: true, PtySessionID: ptyID}
		sess.mu.Unlock()
		return ExecuteOutcome{Interactive: true, PtySessionID: ptyID}, nil
	}

	sess.mu.Lock()
	sess.running[commandID] = &RunningCommand{ID: commandID, Command: command, Interactive: false}
	cwd := sess.cwd
	env := sess.Env
	shell := sess.Shell
	sess.mu.Unlock()

	go m.runBatch(ctx, sess, shell, cwd, env, command, commandID, onOutput, onCompleted)

	return ExecuteOutcome{Interactive: false}, nil
}

func (m *Manager) runBatch(
	ctx context.Context,
	sess *Session,
	shell, cwd string,
	env map[string]string,
	command, commandID string,
	onOutput func(OutputChunk),
	onCompleted func(CommandCompleted),
) {
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "COLORTERM=truecolor", "FORCE_COLOR=1")
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	if err := cmd.Start(); err != nil {
		onCompleted(CommandCompleted{SessionID: sess.ID, CommandID: commandID, ExitCode: -1, CWD: sess.currentCWD()})
		sess.clearRunning(commandID)
		return
	}

	// stdout is fully drained before stderr, so ordering matches the
	// end-of-command guarantee: stdout precedes stderr.
	streamPipe(stdout, "stdout", sess.ID, commandID, onOutput)
	streamPipe(stderr, "stderr", sess.ID, commandID, onOutput)

	waitErr := cmd.Wait()
	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	if exitCode == 0 {
		sess.maybeTrackCD(command)
	}
	sess.clearRunning(commandID)
	onCompleted(CommandCompleted{SessionID: sess.ID, CommandID: commandID, ExitCode: exitCode, CWD: sess.currentCWD()})
}

func streamPipe(r interface{ Read([]byte) (int, error) }, stream, sessionID, commandID string, onOutput func(OutputChunk)) {
	if r == nil || onOutput == nil {
		return
	}
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			onOutput(OutputChunk{
				SessionID: sessionID,
				CommandID: commandID,
				Stream:    stream,
				Data:      chunk,
				HTML:      ConvertANSI(chunk),
			})
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) currentCWD() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

func (s *Session) clearRunning(commandID string) {
	s.mu.Lock()
	delete(s.running, commandID)
	s.mu.Unlock()
}

// maybeTrackCD updates cwd after a successful `cd <path>` batch command.
func (s *Session) maybeTrackCD(command string) {
	trimmed := strings.TrimSpace(command)
	if !strings.HasPrefix(trimmed, "cd ") {
		return
	}
	target := strings.TrimSpace(strings.TrimPrefix(trimmed, "cd "))
	if target == "" {
		return
	}

	s.mu.Lock()
	cwd := s.cwd
	s.mu.Unlock()

	var candidate string
	switch {
	case target == "~" || strings.HasPrefix(target, "~/"):
		home := os.Getenv("HOME")
		candidate = filepath.Join(home, strings.TrimPrefix(target, "~"))
	case strings.HasPrefix(target, "/"):
		candidate = target
	default:
		candidate = filepath.Join(cwd, target)
	}

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		// Canonicalization failure leaves cwd unchanged.
		return
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.cwd = abs
	s.mu.Unlock()
}

// InteractivePty returns the PTY session id for commandID if it is an
// interactive running command, for routing silk_input/silk_resize.
func (s *Session) InteractivePty(commandID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.running[commandID]
	if !ok || !rc.Interactive {
		return "", false
	}
	return rc.PtySessionID, true
}

type silkError string

func (e silkError) Error() string { return string(e) }

const errSessionNotFound = silkError("session_not_found")
