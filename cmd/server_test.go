package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// 确保收到取消信号时会触发服务器优雅关闭，且后台 worker 观察到取消。
func TestRunServer_ShutdownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := newStubRunner()
	srv := newStubServer()

	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, srv, runner, 500*time.Millisecond)
	}()

	srv.waitStarted(t)

	cancel()

	srv.waitShutdown(t)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runServer did not return after cancel")
	}

	// runServer joins the runner goroutine before returning, so by now the
	// worker loop must have observed the cancellation.
	if runner.canceled.Load() == 0 {
		t.Fatalf("orchestrator did not observe context cancellation")
	}
}

// 监听失败时同样要先停掉并等待 worker 退出，再向调用方返回错误。
func TestRunServer_ListenErrorStopsRunner(t *testing.T) {
	t.Parallel()

	runner := newStubRunner()
	err := runServer(context.Background(), failingServer{}, runner, 500*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "address already in use") {
		t.Fatalf("expected listen error surfaced, got %v", err)
	}
	if runner.canceled.Load() == 0 {
		t.Fatalf("expected runner stopped before runServer returned")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PROPDATA_API_KEY", "env-key")
	t.Setenv("NARRATIVE_API_KEY", "")

	cfg := AppConfig{}
	cfg.PropData.APIKey = "yaml-key"
	cfg.Narrative.APIKey = "yaml-narrative"

	applyEnvOverrides(&cfg)

	if cfg.PropData.APIKey != "env-key" {
		t.Fatalf("expected env override, got %q", cfg.PropData.APIKey)
	}
	if cfg.Narrative.APIKey != "yaml-narrative" {
		t.Fatalf("empty env must not override yaml, got %q", cfg.Narrative.APIKey)
	}
}

type stubServer struct {
	started        chan struct{}
	shutdownCalled chan struct{}
	closed         atomic.Bool
}

func newStubServer() *stubServer {
	return &stubServer{
		started:        make(chan struct{}),
		shutdownCalled: make(chan struct{}),
	}
}

func (s *stubServer) ListenAndServe() error {
	close(s.started)
	<-s.shutdownCalled
	return http.ErrServerClosed
}

func (s *stubServer) Shutdown(context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.shutdownCalled)
	return nil
}

func (s *stubServer) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-s.started:
	case <-time.After(time.Second):
		t.Fatal("server did not start")
	}
}

func (s *stubServer) waitShutdown(t *testing.T) {
	t.Helper()
	select {
	case <-s.shutdownCalled:
	case <-time.After(time.Second):
		t.Fatal("server shutdown was not called")
	}
}

type failingServer struct{}

func (failingServer) ListenAndServe() error {
	return errors.New("listen tcp :8080: address already in use")
}

func (failingServer) Shutdown(context.Context) error { return nil }

type stubRunner struct {
	canceled atomic.Int32
}

func newStubRunner() *stubRunner {
	return &stubRunner{}
}

func (s *stubRunner) Start(ctx context.Context) error {
	<-ctx.Done()
	s.canceled.Add(1)
	return ctx.Err()
}
