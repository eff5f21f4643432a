package uci

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// Process is a Worker backed by an engine executable.
type Process struct {
	cmd   *exec.Cmd
	mu    sync.Mutex
	stdin io.WriteCloser
	lines chan string
	done  chan struct{}
	once  sync.Once
}

var _ Worker = (*Process)(nil)

// Start launches the engine at path.
func Start(path string, args ...string) (*Process, error) {
	if path == "" {
		return nil, errors.New("engine path is empty")
	}
	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	p := &Process{
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan string, 256),
		done:  make(chan struct{}),
	}
	go p.read(stdout)
	return p, nil
}

func (p *Process) read(stdout io.Reader) {
	defer close(p.lines)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case p.lines <- scanner.Text():
		case <-p.done:
			return
		}
	}
}

// Send writes one command line.
func (p *Process) Send(cmd string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.stdin, cmd+"\n")
	return err
}

// Lines returns engine output.
func (p *Process) Lines() <-chan string {
	return p.lines
}

// Close asks the engine to quit and kills it if it does not exit promptly.
func (p *Process) Close() error {
	var err error
	p.once.Do(func() {
		if serr := p.Send("quit"); serr != nil {
			// Engine may already be gone.
			_ = serr
		}
		close(p.done)
		if cerr := p.stdin.Close(); cerr != nil {
			_ = cerr
		}
		exited := make(chan error, 1)
		go func() { exited <- p.cmd.Wait() }()
		select {
		case err = <-exited:
		case <-time.After(2 * time.Second):
			if kerr := p.cmd.Process.Kill(); kerr != nil {
				err = kerr
			}
			<-exited
		}
	})
	return err
}
