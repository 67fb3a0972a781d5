package recognition

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
)

// fakeProcess is an in-memory recognition process. handler is called for every
// request line and writes zero or more reply lines to out. Returning false
// makes the process exit.
type fakeProcess struct {
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	handler func(req request, out io.Writer) bool

	mu       sync.Mutex
	requests []request
	killed   chan struct{}
	killOnce sync.Once
}

func newFakeProcess(handler func(req request, out io.Writer) bool) *fakeProcess {
	p := &fakeProcess{handler: handler, killed: make(chan struct{})}
	p.stdinR, p.stdinW = io.Pipe()
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	go p.run()
	return p
}

func (p *fakeProcess) run() {
	defer p.exit()
	scanner := bufio.NewScanner(p.stdinR)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return
		}
		p.mu.Lock()
		p.requests = append(p.requests, req)
		p.mu.Unlock()
		if !p.handler(req, p.stdoutW) {
			return
		}
	}
}

// exit simulates the process terminating on its own.
func (p *fakeProcess) exit() {
	_ = p.stdoutW.Close()
	_ = p.stderrW.Close()
}

func (p *fakeProcess) Stdin() io.WriteCloser { return p.stdinW }
func (p *fakeProcess) Stdout() io.Reader     { return p.stdoutR }
func (p *fakeProcess) Stderr() io.Reader     { return p.stderrR }

func (p *fakeProcess) Kill() error {
	p.killOnce.Do(func() {
		close(p.killed)
		_ = p.stdinR.CloseWithError(errors.New("killed"))
		p.exit()
	})
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.killed
	return nil
}

func (p *fakeProcess) isKilled() bool {
	select {
	case <-p.killed:
		return true
	default:
		return false
	}
}

func (p *fakeProcess) received() []request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]request(nil), p.requests...)
}

// fakeLauncher hands out processes built by newProc.
type fakeLauncher struct {
	mu      sync.Mutex
	newProc func() *fakeProcess
	procs   []*fakeProcess
	err     error
}

func (l *fakeLauncher) Launch(ctx context.Context) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := l.newProc()
	l.procs = append(l.procs, p)
	return p, nil
}

func (l *fakeLauncher) launched() []*fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeProcess(nil), l.procs...)
}

func writeLine(out io.Writer, v any) {
	data, _ := json.Marshal(v)
	_, _ = out.Write(append(data, '\n'))
}

// ackThen acknowledges the probe and answers frames with onFrame.
func ackThen(onFrame func(req request, out io.Writer) bool) func() *fakeProcess {
	return func() *fakeProcess {
		return newFakeProcess(func(req request, out io.Writer) bool {
			if req.Image == "" {
				writeLine(out, map[string]any{"success": true})
				return true
			}
			return onFrame(req, out)
		})
	}
}
