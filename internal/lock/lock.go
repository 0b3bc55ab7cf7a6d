// Package lock prevents two watch sessions from serving the same project.
//
// Two engines watching one .planview directory would both run propagation
// and race each other's record writes. A simple PID file per project is
// enough: stale files from crashed sessions are detected and reclaimed.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/randalmurphal/planview/internal/item"
)

// PIDFileName is the session guard file inside .planview.
const PIDFileName = "watch.pid"

// SessionGuard guards a project against concurrent watch sessions.
type SessionGuard struct {
	projectDir string
}

// NewSessionGuard creates a guard for the given project directory.
func NewSessionGuard(projectDir string) *SessionGuard {
	return &SessionGuard{projectDir: projectDir}
}

func (g *SessionGuard) pidFilePath() string {
	return filepath.Join(g.projectDir, item.PlanviewDir, PIDFileName)
}

// Acquire claims the watch session for this process.
// A live holder yields ActiveSessionError; a stale PID file from a dead
// process is removed and reclaimed.
func (g *SessionGuard) Acquire() error {
	pidFile := g.pidFilePath()

	data, err := os.ReadFile(pidFile)
	if err == nil {
		pid, perr := strconv.Atoi(strings.TrimSpace(string(data)))
		if perr == nil && pid != os.Getpid() && processExists(pid) {
			return &ActiveSessionError{PID: pid}
		}
		// Unreadable or stale: reclaim.
		os.Remove(pidFile)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read session file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return fmt.Errorf("create planview dir: %w", err)
	}
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Release removes the session file. Safe to call if it does not exist.
func (g *SessionGuard) Release() {
	os.Remove(g.pidFilePath())
}

// ActiveSessionError indicates another watch session holds the project.
type ActiveSessionError struct {
	PID int
}

func (e *ActiveSessionError) Error() string {
	return fmt.Sprintf("another watch session is already running (pid %d)", e.PID)
}

// processExists checks if a process with the given PID exists.
func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds. We need to send signal 0 to check.
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
