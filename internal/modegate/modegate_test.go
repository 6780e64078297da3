// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package modegate

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crypto-pepe/firewall-executor/internal/executor"
	"github.com/crypto-pepe/firewall-executor/internal/metrics"
)

type recordingExecutor struct {
	name  string
	calls *[]string
}

func (e recordingExecutor) Ban(context.Context, executor.BlockRequest, string) error {
	*e.calls = append(*e.calls, e.name+":ban")
	return nil
}

func (e recordingExecutor) Unban(context.Context, executor.UnblockRequest) error {
	*e.calls = append(*e.calls, e.name+":unban")
	return nil
}

func TestGateDispatch(t *testing.T) {
	var calls []string
	real := recordingExecutor{name: "real", calls: &calls}
	dry := recordingExecutor{name: "dry", calls: &calls}
	m := metrics.NewCollector(prometheus.NewRegistry())

	g := New(real, dry, false, m)
	require.NoError(t, g.Ban(context.Background(), executor.BlockRequest{}, "a1"))
	assert.Equal(t, []string{"real:ban"}, calls)

	g.SetDryRun(true)
	calls = nil
	require.NoError(t, g.Unban(context.Background(), executor.UnblockRequest{}))
	assert.Equal(t, []string{"dry:unban"}, calls)
	assert.True(t, g.DryRun())
}
