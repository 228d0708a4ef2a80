package persist

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vanderheijden86/markon/pkg/sched"
	"github.com/vanderheijden86/markon/pkg/store"
)

const workerProcessEnv = "MARKON_TEST_WORKER_STORE"

// TestMain doubles as the worker process for the exec tests: when
// MARKON_TEST_WORKER_STORE is set the test binary serves the protocol on its
// stdio instead of running tests.
func TestMain(m *testing.M) {
	if path := os.Getenv(workerProcessEnv); path != "" {
		os.Exit(runWorkerProcess(path))
	}
	os.Exit(m.Run())
}

func runWorkerProcess(path string) int {
	st := store.New(store.OpenBolt(path))
	defer st.Close()

	err := ServeWorker(context.Background(), Stdio(), SaverConfig{
		Store:    st,
		Debounce: time.Hour,
		Idle:     sched.ImmediateIdle{},
		LogLevel: LogLevelNone,
	})
	if err != nil {
		return 1
	}
	return 0
}

func TestExecSpawner_WorkerProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.bolt")
	t.Setenv(workerProcessEnv, path)

	tr, err := ExecSpawner(os.Args[0])(context.Background())
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	c := NewClient(tr, nil)
	c.Save("typed")
	if err := c.Flush(context.Background(), "typed"); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st := store.New(store.OpenBolt(path))
	defer st.Close()
	got, found := st.Read(context.Background(), store.ContentKey)
	if !found || got != "typed" {
		t.Errorf("stored %q (found=%v), want the flushed value", got, found)
	}
}

func TestProcConn_CloseLetsReaderFinish(t *testing.T) {
	t.Setenv(workerProcessEnv, filepath.Join(t.TempDir(), "content.bolt"))

	p, err := startProc(os.Args[0])
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	readErr := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.Discard, p)
		if err == nil {
			err = io.EOF
		}
		readErr <- err
	}()

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case err := <-readErr:
		if !errors.Is(err, io.EOF) {
			t.Errorf("reader ended with %v, want EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader still blocked after Close")
	}
	if err := p.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestExecSpawner_MissingBinary(t *testing.T) {
	_, err := ExecSpawner("markon-worker-does-not-exist")(context.Background())
	if err == nil {
		t.Fatal("expected an error for a missing worker binary")
	}

	_, err = New(Options{
		Store:    store.New(store.NewMemory().Opener()),
		Strategy: StrategyWorker,
		Spawn:    ExecSpawner("markon-worker-does-not-exist"),
	})
	if err == nil {
		t.Fatal("worker strategy should fail without a worker")
	}
}
