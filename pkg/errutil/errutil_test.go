// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package errutil_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/pkg/errutil"
)

func TestCode(t *testing.T) {
	t.Run("extracts oops code", func(t *testing.T) {
		err := oops.Code("SOMETHING_FAILED").Errorf("boom")
		assert.Equal(t, "SOMETHING_FAILED", errutil.Code(err))
	})

	t.Run("code survives wrapping", func(t *testing.T) {
		err := oops.Code("INNER").Wrap(errors.New("boom"))
		assert.Equal(t, "INNER", errutil.Code(err))
	})

	t.Run("oops error without a code yields empty string", func(t *testing.T) {
		err := oops.With("operation", "connect").Wrap(errors.New("boom"))
		assert.Equal(t, "", errutil.Code(err))
	})

	t.Run("plain error has no code", func(t *testing.T) {
		assert.Equal(t, "", errutil.Code(errors.New("boom")))
	})
}

func TestLogError(t *testing.T) {
	t.Run("oops error includes code and context", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		err := oops.Code("STORE_PING_FAILED").
			With("operation", "ping database").
			Errorf("connection refused")
		errutil.LogError(logger, "startup failed", err)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "startup failed", entry["msg"])
		assert.Equal(t, "STORE_PING_FAILED", entry["code"])
		assert.Contains(t, entry, "context")
	})

	t.Run("plain error logs message only", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		errutil.LogError(logger, "something failed", errors.New("boom"))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "boom", entry["error"])
		assert.NotContains(t, entry, "code")
	})
}
