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
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// notifyReady tells systemd the server accepts connections. It is a no-op
// outside a notify-type unit.
func notifyReady() {
	notify(daemon.SdNotifyReady)
}

// notifyStopping tells systemd the server is shutting down.
func notifyStopping() {
	notify(daemon.SdNotifyStopping)
}

func notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		slog.Warn("systemd notify failed", "state", state, "error", err)
		return
	}
	if sent {
		slog.Debug("systemd notified", "state", state)
	}
}

// runWatchdog pings the systemd watchdog at half its interval while healthy
// reports true. It returns immediately when no watchdog is configured.
func runWatchdog(ctx context.Context, healthy func() bool) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		slog.Warn("systemd watchdog unavailable", "error", err)
		return nil
	}
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	slog.Info("systemd watchdog enabled", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if healthy() {
				notify(daemon.SdNotifyWatchdog)
			}
		}
	}
}
