// Package ptymgr manages pseudo-terminal sessions: spawn, stream output
// upstream, accept input/resize, and reap on close.
package ptymgr

import (
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/adi-family/cocoon/internal/signaling"
)

func encodeOutput(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

const readChunkSize = 4096

// Session is one PTY-backed child process.
type Session struct {
	ID     string
	cmd    *exec.Cmd
	ptmx   *os.File
	replay *replayBuffer

	mu     sync.Mutex
	closed bool
}

// Manager owns the session map. Every operation acquires the map lock only
// long enough to look up or mutate it; PTY reads happen on a dedicated
// goroutine per session outside the lock.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	write func(payload any)
}

// NewManager takes a write callback used to post frames upstream; it is
// expected to be non-blocking from the caller's perspective (e.g. the
// signaling Link's shared sink, called from its own goroutine).
func NewManager(write func(payload any)) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		write:    write,
	}
}

// Create opens a PTY, spawns `/bin/sh -c command` on the slave, and starts
// a dedicated blocking reader. The reader stops naturally at EOF and
// posts a PtyExited frame once the child has been reaped.
func (m *Manager) Create(command string, cols, rows int, env map[string]string) (string, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Env = buildEnv(env)

	size := &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}
	ptmx, err := pty.StartWithSize(cmd, size)
	if err != nil {
		return "", fmt.Errorf("pty_create_failed: %w", err)
	}

	id := uuid.NewString()
	sess := &Session{ID: id, cmd: cmd, ptmx: ptmx, replay: newReplayBuffer()}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	go m.readLoop(sess)

	return id, nil
}

func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	env = append(env, "TERM=xterm-256color")
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// readLoop reads 4 KiB chunks from the master and forwards each as a
// PtyOutput frame, preserving byte order for this session. EOF or a read
// error ends the loop; the child is then reaped for its exit code.
func (m *Manager) readLoop(sess *Session) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := sess.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			sess.replay.Write(data)
			m.write(signaling.PtyOutput{
				Type:      signaling.RespPtyOutput,
				SessionID: sess.ID,
				Data:      encodeOutput(data),
			})
		}
		if err != nil {
			break
		}
	}
	exitCode := m.reap(sess)
	m.removeSession(sess.ID)
	m.write(signaling.PtyExited{
		Type:      signaling.RespPtyExited,
		SessionID: sess.ID,
		ExitCode:  exitCode,
	})
}

func (m *Manager) reap(sess *Session) int {
	err := sess.cmd.Wait()
	_ = sess.ptmx.Close()
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func (m *Manager) removeSession(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *Manager) lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Input writes bytes to the session's single held writer handle.
func (m *Manager) Input(sessionID string, data []byte) error {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return fmt.Errorf("session_not_found")
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return fmt.Errorf("session_not_found")
	}
	_, err := sess.ptmx.Write(data)
	if err != nil {
		return fmt.Errorf("pty_write_failed: %w", err)
	}
	return nil
}

// Resize issues a terminal resize on the master.
func (m *Manager) Resize(sessionID string, cols, rows int) error {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return fmt.Errorf("session_not_found")
	}
	if err := pty.Setsize(sess.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		return fmt.Errorf("resize_failed: %w", err)
	}
	return nil
}

// Close marks the session closed and kills the child if still running; the
// reader goroutine observes the resulting EOF/error, removes the session,
// and posts PtyExited.
func (m *Manager) Close(sessionID string) error {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return fmt.Errorf("session_not_found")
	}
	sess.mu.Lock()
	sess.closed = true
	sess.mu.Unlock()
	if sess.cmd.Process != nil {
		_ = sess.cmd.Process.Kill()
	}
	return nil
}

// Has reports whether a session id is currently live, for callers that
// need to check existence without an error-returning operation.
func (m *Manager) Has(sessionID string) bool {
	_, ok := m.lookup(sessionID)
	return ok
}

// Reattach returns the buffered tail of a live session's output, so a
// viewer that reconnects mid-session (or was momentarily slow to drain
// frames) can be caught up instead of shown a blank screen.
func (m *Manager) Reattach(sessionID string) ([]byte, error) {
	sess, ok := m.lookup(sessionID)
	if !ok {
		return nil, fmt.Errorf("session_not_found")
	}
	return sess.replay.Snapshot(), nil
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
