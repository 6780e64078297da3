// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package executor

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	flerrors "github.com/crypto-pepe/firewall-executor/internal/errors"
	"github.com/crypto-pepe/firewall-executor/internal/filteralgebra"
)

// DryRunExecutor validates and classifies a request exactly like
// RealExecutor but never touches the store or the upstream CDN. It exists
// to exercise request validation in production without mutating state.
type DryRunExecutor struct {
	Logger zerolog.Logger
}

var _ Executor = (*DryRunExecutor)(nil)

// Ban validates req and logs the intended action.
func (e *DryRunExecutor) Ban(_ context.Context, req BlockRequest, analyzerID string) error {
	if req.TTLSeconds == 0 {
		return flerrors.New(flerrors.KindMissingTTL, "ttl must be greater than zero")
	}
	if strings.TrimSpace(analyzerID) == "" {
		return flerrors.New(flerrors.KindBadRequest, "empty analyzer-id")
	}

	f, err := filteralgebra.New(req.Target.IP, req.Target.UserAgent)
	if err != nil {
		return err
	}

	e.Logger.Info().
		Str("kind", string(f.Kind)).
		Str("expression", f.Expression).
		Str("reason", req.Reason).
		Str("analyzer_id", analyzerID).
		Msg("dry-run: would ban")
	return nil
}

// Unban validates req and logs the intended action.
func (e *DryRunExecutor) Unban(_ context.Context, req UnblockRequest) error {
	f, err := filteralgebra.New(req.Target.IP, req.Target.UserAgent)
	if err != nil {
		return err
	}

	e.Logger.Info().
		Str("kind", string(f.Kind)).
		Str("expression", f.Expression).
		Msg("dry-run: would unban")
	return nil
}
