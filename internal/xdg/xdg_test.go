// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package xdg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigDir(t *testing.T) {
	t.Run("uses XDG_CONFIG_HOME when set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")

		assert.Equal(t, "/custom/config/keygate", ConfigDir())
	})

	t.Run("falls back to ~/.config", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/tester")

		assert.Equal(t, "/home/tester/.config/keygate", ConfigDir())
	})
}

func TestDefaultConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	assert.Equal(t, "/custom/config/keygate/keygate.yaml", DefaultConfigFile())
}
