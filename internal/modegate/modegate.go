// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package modegate routes each ban/unban to the real executor or to the
// dry-run executor based on a process-wide atomic switch, toggled by the
// admin config endpoint. An in-flight request sees whatever value was
// current the moment it was dispatched; the toggle is never serialized
// against in-flight requests.
package modegate

import (
	"context"
	"sync/atomic"

	"github.com/crypto-pepe/firewall-executor/internal/executor"
	"github.com/crypto-pepe/firewall-executor/internal/metrics"
)

// Gate dispatches to Real or DryRunExec depending on the current mode.
type Gate struct {
	Real       executor.Executor
	DryRunExec executor.Executor
	Metrics    *metrics.Collector

	dryRun atomic.Bool
}

// New constructs a Gate starting in the given mode.
func New(real, dryRun executor.Executor, startDryRun bool, m *metrics.Collector) *Gate {
	g := &Gate{Real: real, DryRunExec: dryRun, Metrics: m}
	g.SetDryRun(startDryRun)
	return g
}

// SetDryRun toggles the mode. Safe for concurrent use.
func (g *Gate) SetDryRun(on bool) {
	g.dryRun.Store(on)
	if g.Metrics != nil {
		if on {
			g.Metrics.DryRun.Set(1)
		} else {
			g.Metrics.DryRun.Set(0)
		}
	}
}

// DryRun reports the current mode.
func (g *Gate) DryRun() bool {
	return g.dryRun.Load()
}

func (g *Gate) current() executor.Executor {
	if g.dryRun.Load() {
		return g.DryRunExec
	}
	return g.Real
}

// Ban dispatches to whichever executor is active at the moment of the call.
func (g *Gate) Ban(ctx context.Context, req executor.BlockRequest, analyzerID string) error {
	return g.current().Ban(ctx, req, analyzerID)
}

// Unban dispatches to whichever executor is active at the moment of the call.
func (g *Gate) Unban(ctx context.Context, req executor.UnblockRequest) error {
	return g.current().Unban(ctx, req)
}
