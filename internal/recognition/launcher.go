package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Process is a running recognition process with line-oriented JSON pipes.
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Stderr() io.Reader
	Kill() error
	Wait() error
}

// Launcher starts recognition processes.
type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

// ExecLauncher runs the recognition script with an unbuffered Python interpreter.
type ExecLauncher struct {
	Python string
	Script string
	Args   []string
	Dir    string
	Env    []string
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader
}

// Launch starts `python -u script args...`.
func (l *ExecLauncher) Launch(ctx context.Context) (Process, error) {
	if l.Script == "" {
		return nil, errors.New("recognition script path is required")
	}
	python := l.Python
	if python == "" {
		python = "python3"
	}

	args := append([]string{"-u", l.Script}, l.Args...)
	// The process outlives the launching request, it is stopped through Kill.
	cmd := exec.Command(python, args...) //nolint:gosec // interpreter and script come from trusted config
	cmd.Dir = l.Dir
	if len(l.Env) > 0 {
		cmd.Env = append(cmd.Environ(), l.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", python, err)
	}
	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Stdout() io.Reader     { return p.stdout }
func (p *execProcess) Stderr() io.Reader     { return p.stderr }

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill recognition process: %w", err)
	}
	return nil
}

func (p *execProcess) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("wait recognition process: %w", err)
	}
	return nil
}
