// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/NVIDIA/cmts-monitor/pkg/defaults"
)

func TestParseConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("PORT", "")
		t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "")
		cfg := NewConfig()
		assert.Equal(t, defaults.ServerPort, cfg.Port)
		assert.Equal(t, defaults.ServerShutdownTimeout, cfg.ShutdownTimeout)
		assert.Equal(t, defaults.ServerReadHeaderTimeout, cfg.ReadHeaderTimeout)
		assert.Equal(t, ":8001", cfg.addr())
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "5")
		cfg := NewConfig()
		assert.Equal(t, 9090, cfg.Port)
		assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	})

	t.Run("invalid env ignored", func(t *testing.T) {
		t.Setenv("PORT", "abc")
		t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "-3")
		cfg := NewConfig()
		assert.Equal(t, defaults.ServerPort, cfg.Port)
		assert.Equal(t, defaults.ServerShutdownTimeout, cfg.ShutdownTimeout)
	})
}
