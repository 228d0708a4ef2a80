package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// workerExitTimeout bounds how long Close waits for a worker process after
// hanging up on it.
const workerExitTimeout = 5 * time.Second

// ExecSpawner starts the worker endpoint as a child process speaking the
// JSON-lines protocol on its stdin and stdout. The child's stderr is passed
// through so its event log stays visible.
func ExecSpawner(name string, args ...string) SpawnFunc {
	return func(ctx context.Context) (Transport, error) {
		p, err := startProc(name, args...)
		if err != nil {
			return nil, err
		}
		return NewStream(p), nil
	}
}

func startProc(name string, args ...string) (*procConn, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(path, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}
	return &procConn{
		cmd:      cmd,
		stdin:    stdin,
		stdout:   stdout,
		readDone: make(chan struct{}),
	}, nil
}

// procConn joins a child's stdio into one ReadWriteCloser.
type procConn struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	readOnce sync.Once
	readDone chan struct{} // closed once a read of stdout fails, usually at EOF

	closeOnce sync.Once
	closeErr  error
}

func (p *procConn) Read(b []byte) (int, error) {
	n, err := p.stdout.Read(b)
	if err != nil {
		p.readOnce.Do(func() { close(p.readDone) })
	}
	return n, err
}

func (p *procConn) Write(b []byte) (int, error) { return p.stdin.Write(b) }

// Close hangs up on the child, waits for its stdout to be read to the end
// and reaps it. A child that does not exit in time is killed. Wait closes
// stdout, so it only runs after the reader is done with it.
func (p *procConn) Close() error {
	p.closeOnce.Do(func() {
		_ = p.stdin.Close()

		select {
		case <-p.readDone:
		case <-time.After(workerExitTimeout):
			_ = p.cmd.Process.Kill()
			p.closeErr = fmt.Errorf("worker process did not exit within %s", workerExitTimeout)
			select {
			case <-p.readDone:
			case <-time.After(workerExitTimeout):
			}
		}

		err := p.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) && p.closeErr == nil {
			p.closeErr = err
		}
	})
	return p.closeErr
}

// Stdio returns the process's stdin and stdout as one stream, for a worker
// process serving its parent with ServeWorker.
func Stdio() io.ReadWriteCloser {
	return stdioConn{}
}

type stdioConn struct{}

func (stdioConn) Read(b []byte) (int, error)  { return os.Stdin.Read(b) }
func (stdioConn) Write(b []byte) (int, error) { return os.Stdout.Write(b) }

func (stdioConn) Close() error {
	return errors.Join(os.Stdin.Close(), os.Stdout.Close())
}
