// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package executor implements the ban/unban orchestration: it coalesces
// filter expressions, persists the authoritative state, and reconciles
// the upstream CDN. Both the real and dry-run variants implement Executor.
package executor

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	flerrors "github.com/crypto-pepe/firewall-executor/internal/errors"
	"github.com/crypto-pepe/firewall-executor/internal/filteralgebra"
	"github.com/crypto-pepe/firewall-executor/internal/metrics"
	"github.com/crypto-pepe/firewall-executor/internal/store"
)

// Target identifies the actor a ban/unban names. UserAgent is a pointer so
// a present-but-empty value is distinguishable from an absent one (see
// filteralgebra.New).
type Target struct {
	IP        string
	UserAgent *string
}

// BlockRequest is a ban command.
type BlockRequest struct {
	Target     Target
	Reason     string
	TTLSeconds uint64
}

// UnblockRequest is an unban command.
type UnblockRequest struct {
	Target Target
}

// UpstreamClient is the four-operation surface the executor needs from the
// CDN REST client.
type UpstreamClient interface {
	CreateFilter(ctx context.Context, expression, description string) (filterID string, err error)
	UpdateFilter(ctx context.Context, filterID, expression string) error
	CreateRule(ctx context.Context, filterID, action string) (ruleID string, err error)
	DeleteRule(ctx context.Context, ruleID string) error
}

// Executor is the operation set both the real and dry-run implementations
// expose, selected at dispatch time by the mode gate.
type Executor interface {
	Ban(ctx context.Context, req BlockRequest, analyzerID string) error
	Unban(ctx context.Context, req UnblockRequest) error
}

const restrictionTypeBlock = "block"

// RealExecutor applies bans/unbans to the store and upstream CDN.
type RealExecutor struct {
	Store    store.DataStore
	Upstream UpstreamClient
	Logger   zerolog.Logger
	Metrics  *metrics.Collector
	Now      func() time.Time
}

var _ Executor = (*RealExecutor)(nil)

func (e *RealExecutor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e *RealExecutor) observeOutcome(counter string, outcome string) {
	if e.Metrics == nil {
		return
	}
	switch counter {
	case "ban":
		e.Metrics.BansTotal.WithLabelValues(outcome).Inc()
	case "unban":
		e.Metrics.UnbansTotal.WithLabelValues(outcome).Inc()
	}
}

// Ban implements the decision tree in the ban algorithm: first ban of a
// kind creates a filter and rule upstream; subsequent bans coalesce into
// the existing filter, or refresh the TTL of a duplicate.
func (e *RealExecutor) Ban(ctx context.Context, req BlockRequest, analyzerID string) error {
	if req.TTLSeconds == 0 {
		e.observeOutcome("ban", "rejected")
		return flerrors.New(flerrors.KindMissingTTL, "ttl must be greater than zero")
	}
	if strings.TrimSpace(analyzerID) == "" {
		e.observeOutcome("ban", "rejected")
		return flerrors.New(flerrors.KindBadRequest, "empty analyzer-id")
	}

	newFilter, err := filteralgebra.New(req.Target.IP, req.Target.UserAgent)
	if err != nil {
		e.observeOutcome("ban", "rejected")
		return err
	}

	existing, err := e.Store.FindFilterByKind(ctx, newFilter.Kind)
	if err != nil {
		e.observeOutcome("ban", "error")
		return err
	}

	expiresAt := e.now().Add(time.Duration(req.TTLSeconds) * time.Second)

	if existing == nil {
		if err := e.banFirstOfKind(ctx, newFilter, req, analyzerID, expiresAt); err != nil {
			e.observeOutcome("ban", "error")
			return err
		}
		e.observeOutcome("ban", "applied")
		return nil
	}

	includes, err := existing.Includes(newFilter)
	if err != nil {
		e.observeOutcome("ban", "error")
		return err
	}

	if includes {
		if err := e.refreshDuplicate(ctx, newFilter, req, analyzerID, expiresAt); err != nil {
			e.observeOutcome("ban", "error")
			return err
		}
		e.observeOutcome("ban", "refreshed")
		return nil
	}

	if err := e.coalesce(ctx, existing, newFilter, req, analyzerID, expiresAt); err != nil {
		e.observeOutcome("ban", "error")
		return err
	}
	e.observeOutcome("ban", "applied")
	return nil
}

func (e *RealExecutor) banFirstOfKind(ctx context.Context, newFilter filteralgebra.Filter, req BlockRequest, analyzerID string, expiresAt time.Time) error {
	filterID, err := e.Upstream.CreateFilter(ctx, newFilter.Expression, string(newFilter.Kind))
	if err != nil {
		return err
	}
	newFilter.ID = filterID

	if err := e.Store.InsertFilter(ctx, newFilter); err != nil {
		return err
	}

	ruleID, err := e.Upstream.CreateRule(ctx, filterID, restrictionTypeBlock)
	if err != nil {
		return err
	}
	if err := e.Store.UpdateFilterRuleID(ctx, filterID, ruleID); err != nil {
		return err
	}

	_, err = e.Store.InsertNongrata(ctx, store.Nongrata{
		FilterID:         filterID,
		Reason:           req.Reason,
		RestrictionValue: newFilter.Expression,
		RestrictionType:  restrictionTypeBlock,
		ExpiresAt:        expiresAt,
		IsGlobal:         true,
		AnalyzerID:       analyzerID,
	})
	return err
}

func (e *RealExecutor) refreshDuplicate(ctx context.Context, newFilter filteralgebra.Filter, req BlockRequest, analyzerID string, expiresAt time.Time) error {
	prior, err := e.Store.FindNongrataByRestrictionValue(ctx, newFilter.Expression)
	if err != nil {
		return err
	}
	if prior == nil {
		return flerrors.New(flerrors.KindWrongFilter, "no nongrata matches the duplicate ban's restriction value")
	}
	return e.Store.UpdateNongrata(ctx, prior.ID, req.Reason, analyzerID, expiresAt)
}

func (e *RealExecutor) coalesce(ctx context.Context, existing *filteralgebra.Filter, newFilter filteralgebra.Filter, req BlockRequest, analyzerID string, expiresAt time.Time) error {
	if err := existing.Append(newFilter); err != nil {
		return err
	}
	if err := e.Upstream.UpdateFilter(ctx, existing.ID, existing.Expression); err != nil {
		return err
	}
	if err := e.Store.UpdateFilterExpression(ctx, existing.ID, existing.Expression); err != nil {
		return err
	}

	_, err := e.Store.InsertNongrata(ctx, store.Nongrata{
		FilterID:         existing.ID,
		Reason:           req.Reason,
		RestrictionValue: newFilter.Expression,
		RestrictionType:  restrictionTypeBlock,
		ExpiresAt:        expiresAt,
		IsGlobal:         true,
		AnalyzerID:       analyzerID,
	})
	return err
}

// Unban implements the trim-or-delete decision described for unban
// processing.
func (e *RealExecutor) Unban(ctx context.Context, req UnblockRequest) error {
	trim, err := filteralgebra.New(req.Target.IP, req.Target.UserAgent)
	if err != nil {
		e.observeOutcome("unban", "rejected")
		return err
	}

	existing, err := e.Store.FindFilterByKind(ctx, trim.Kind)
	if err != nil {
		e.observeOutcome("unban", "error")
		return err
	}
	if existing == nil {
		e.observeOutcome("unban", "rejected")
		return flerrors.New(flerrors.KindWrongFilter, "no filter of this kind is active")
	}

	// Matched against trim's own clause, not the (possibly multi-clause)
	// filter expression: restriction_value is always a single clause, so
	// only the clause for this specific target can identify its nongrata.
	nongrata, err := e.Store.FindNongrataByRestrictionValue(ctx, trim.Expression)
	if err != nil {
		e.observeOutcome("unban", "error")
		return err
	}
	if nongrata == nil {
		e.observeOutcome("unban", "rejected")
		return flerrors.New(flerrors.KindWrongFilter, "no nongrata matches this target")
	}

	if err := existing.Trim(trim); err != nil {
		e.observeOutcome("unban", "error")
		return err
	}

	if existing.IsEmpty() {
		if err := e.Upstream.DeleteRule(ctx, existing.RuleID); err != nil {
			e.observeOutcome("unban", "error")
			return err
		}
		if err := e.Store.DeleteFilter(ctx, existing.ID); err != nil {
			e.observeOutcome("unban", "error")
			return err
		}
	} else {
		if err := e.Upstream.UpdateFilter(ctx, existing.ID, existing.Expression); err != nil {
			e.observeOutcome("unban", "error")
			return err
		}
		if err := e.Store.UpdateFilterExpression(ctx, existing.ID, existing.Expression); err != nil {
			e.observeOutcome("unban", "error")
			return err
		}
	}

	if err := e.Store.DeleteNongrata(ctx, nongrata.ID); err != nil {
		e.observeOutcome("unban", "error")
		return err
	}
	e.observeOutcome("unban", "applied")
	return nil
}
