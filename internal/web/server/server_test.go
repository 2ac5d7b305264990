package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&Config{Address: ":0"})
	assert.Error(t, err)

	cfg := DefaultConfig("localhost:3000", okHandler())
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	srv, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "localhost:3000", srv.Addr())
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv, err := New(DefaultConfig("127.0.0.1:0", okHandler()))
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	resp, err := http.Get("http://" + srv.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.ErrorIs(t, <-done, http.ErrServerClosed)
}

func TestGracefulShutdown_Run(t *testing.T) {
	srv, err := New(DefaultConfig("127.0.0.1:0", okHandler()))
	require.NoError(t, err)

	gs := NewGracefulShutdown(srv, ShutdownConfig{Timeout: time.Second})

	var order []string
	gs.RegisterHook(func(ctx context.Context) error {
		order = append(order, "first")
		return errors.New("ignored")
	})
	gs.RegisterHook(func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + srv.Addr() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestGracefulShutdown_ListenError(t *testing.T) {
	srv, err := New(DefaultConfig("256.0.0.1:99999", okHandler()))
	require.NoError(t, err)

	err = NewGracefulShutdown(srv, ShutdownConfig{}).Run(context.Background())
	assert.Error(t, err)
}
