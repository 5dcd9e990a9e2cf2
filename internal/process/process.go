// Package process tracks the running service instance through a pid file and
// the gops process table.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/gops/goprocess"
)

// Table is a snapshot of the Go processes on this host.
type Table struct {
	procs []goprocess.P
}

// Snapshot lists the Go processes currently running.
func Snapshot() *Table {
	return &Table{procs: goprocess.FindAll()}
}

// Running reports whether pid is in the snapshot.
func (t *Table) Running(pid int) bool {
	for _, p := range t.procs {
		if p.PID == pid {
			return true
		}
	}

	return false
}

// Matches reports whether pid is running an executable whose name or path
// contains name.
func (t *Table) Matches(pid int, name string) bool {
	name = strings.ToLower(name)

	for _, p := range t.procs {
		if p.PID == pid {
			return strings.Contains(strings.ToLower(p.Exec), name) || strings.Contains(strings.ToLower(p.Path), name)
		}
	}

	return false
}

// PIDFile records the pid of the serving instance.
type PIDFile struct {
	path string
}

func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

func (f *PIDFile) Path() string {
	return f.path
}

// Write stores pid, creating parent directories as needed.
func (f *PIDFile) Write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}

	if err := os.WriteFile(f.path, []byte(strconv.Itoa(pid)), 0o600); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}

	return nil
}

// Read returns the recorded pid. A missing file yields 0 and no error.
func (f *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to read pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file %s: %w", f.path, err)
	}

	return pid, nil
}

func (f *PIDFile) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// Alive returns the recorded pid when it still belongs to a process named
// name. Stale files are ignored.
func (f *PIDFile) Alive(name string) (int, bool) {
	pid, err := f.Read()
	if err != nil || pid <= 0 {
		return 0, false
	}

	if !Snapshot().Matches(pid, name) {
		return 0, false
	}

	return pid, true
}

// WaitExit polls the process table until pid is gone or ctx is done.
func WaitExit(ctx context.Context, pid int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !Snapshot().Running(pid) {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("process %d still running: %w", pid, ctx.Err())
		case <-ticker.C:
		}
	}
}
