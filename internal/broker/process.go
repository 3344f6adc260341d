package broker

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// process wraps one spawned tool-server subprocess. Its exit is observed by a
// dedicated goroutine so liveness checks never block.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu     sync.Mutex
	stderr bytes.Buffer
}

// startProcess spawns command with environment = OS environment ⊕ env.
func startProcess(command string, args []string, env map[string]string) (*process, error) {
	cmd := exec.Command(command, args...)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	p := &process{cmd: cmd, done: make(chan struct{})}
	cmd.Stderr = &lockedWriter{p: p}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", command, err)
	}
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *process) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *process) alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// errOutput returns the captured error stream, or a generic message when the
// process died silently.
func (p *process) errOutput() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.stderr.String()
	if out == "" {
		return "process exited"
	}
	return out
}

// stop requests graceful termination, waits up to gracePeriod, then kills.
func (p *process) stop(gracePeriod time.Duration) {
	if !p.alive() {
		return
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
		return
	case <-time.After(gracePeriod):
	}
	_ = p.cmd.Process.Kill()
	<-p.done
}

// lockedWriter serializes subprocess stderr into the process buffer.
type lockedWriter struct {
	p *process
}

func (w *lockedWriter) Write(b []byte) (int, error) {
	w.p.mu.Lock()
	defer w.p.mu.Unlock()
	return w.p.stderr.Write(b)
}
