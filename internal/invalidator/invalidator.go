// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package invalidator runs the periodic TTL sweep: it reclaims expired
// nongratas, trims or deletes their filter, and reconciles the upstream
// CDN. One tick is one sweep; ticks never overlap, and a failed tick
// simply logs and waits for the next one. Each expired nongrata is deleted
// from the store right after its filter is loaded and before the filter is
// trimmed and reconciled upstream: one whose filter lookup failed is picked
// up again on the next tick, while one whose upstream reconciliation failed
// after the delete is not revisited by the invalidator.
package invalidator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	flerrors "github.com/crypto-pepe/firewall-executor/internal/errors"
	"github.com/crypto-pepe/firewall-executor/internal/executor"
	"github.com/crypto-pepe/firewall-executor/internal/filteralgebra"
	"github.com/crypto-pepe/firewall-executor/internal/metrics"
	"github.com/crypto-pepe/firewall-executor/internal/store"
)

// Invalidator is the single long-running periodic task.
type Invalidator struct {
	Store    store.DataStore
	Upstream executor.UpstreamClient
	Interval time.Duration
	Logger   zerolog.Logger
	Metrics  *metrics.Collector
	Now      func() time.Time
}

func (inv *Invalidator) now() time.Time {
	if inv.Now != nil {
		return inv.Now()
	}
	return time.Now().UTC()
}

// Run blocks, ticking every Interval until ctx is cancelled. Ticks do not
// overlap: Tick runs inside this loop, so the next ticker receive happens
// only after the previous Tick returned.
func (inv *Invalidator) Run(ctx context.Context) error {
	interval := inv.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := inv.Tick(ctx); err != nil {
				inv.Logger.Error().Err(err).Msg("invalidator tick aborted")
				if inv.Metrics != nil {
					inv.Metrics.InvalidationErrors.Inc()
				}
			}
		}
	}
}

// Tick performs one sweep. It aborts at the first error, leaving whatever
// is still expired for the next tick.
func (inv *Invalidator) Tick(ctx context.Context) error {
	now := inv.now()
	expired, err := inv.Store.SelectExpiredNongratas(ctx, now)
	if err != nil {
		return err
	}

	for _, n := range expired {
		if err := inv.reclaim(ctx, n); err != nil {
			return err
		}
		if inv.Metrics != nil {
			inv.Metrics.InvalidationsTotal.Inc()
		}
	}
	return nil
}

func (inv *Invalidator) reclaim(ctx context.Context, n store.Nongrata) error {
	filter, err := inv.Store.FindFilterByID(ctx, n.FilterID)
	if err != nil {
		return err
	}

	// restriction_value carries only the clause; the trim target takes the
	// loaded filter's real kind (never KindUnset) before any algebra op runs.
	trim := filteralgebra.Filter{
		Kind:       filter.Kind,
		Expression: n.RestrictionValue,
	}

	if err := inv.Store.DeleteNongrata(ctx, n.ID); err != nil {
		return err
	}

	if err := filter.Trim(trim); err != nil {
		return flerrors.Wrap(err, flerrors.KindWrongFilter, "trim expired nongrata")
	}

	if filter.IsEmpty() {
		if err := inv.Upstream.DeleteRule(ctx, filter.RuleID); err != nil {
			return err
		}
		return inv.Store.DeleteFilter(ctx, filter.ID)
	}

	if err := inv.Upstream.UpdateFilter(ctx, filter.ID, filter.Expression); err != nil {
		return err
	}
	return inv.Store.UpdateFilterExpression(ctx, filter.ID, filter.Expression)
}
