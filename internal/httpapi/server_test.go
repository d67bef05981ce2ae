// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package httpapi_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/httpapi"
)

func startServer(t *testing.T, handler http.Handler) *httpapi.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := httpapi.NewServer("127.0.0.1:0", handler, logger)

	_, err := server.Start()
	require.NoError(t, err)

	t.Cleanup(func() {
		http.DefaultClient.CloseIdleConnections()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, server.Stop(ctx))
	})

	return server
}

func TestServerLifecycle(t *testing.T) {
	t.Run("serves the handler", func(t *testing.T) {
		server := startServer(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		resp, err := http.Get("http://" + server.Addr() + "/")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("double start fails", func(t *testing.T) {
		server := startServer(t, http.NotFoundHandler())

		_, err := server.Start()
		assert.Error(t, err)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		server := httpapi.NewServer("127.0.0.1:0", http.NotFoundHandler(), logger)

		_, err := server.Start()
		require.NoError(t, err)

		ctx := context.Background()
		require.NoError(t, server.Stop(ctx))
		require.NoError(t, server.Stop(ctx))
	})
}
