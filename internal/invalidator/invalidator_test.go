// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package invalidator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/crypto-pepe/firewall-executor/internal/filteralgebra"
	"github.com/crypto-pepe/firewall-executor/internal/store"
)

type fakeStore struct {
	filters   map[string]filteralgebra.Filter
	nongratas map[int64]store.Nongrata
}

func (s *fakeStore) LoadSchema(context.Context) error { return nil }
func (s *fakeStore) FindFilterByKind(context.Context, filteralgebra.Kind) (*filteralgebra.Filter, error) {
	return nil, nil
}
func (s *fakeStore) FindFilterByID(_ context.Context, id string) (*filteralgebra.Filter, error) {
	f, ok := s.filters[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &f, nil
}
func (s *fakeStore) InsertFilter(_ context.Context, f filteralgebra.Filter) error {
	s.filters[f.ID] = f
	return nil
}
func (s *fakeStore) UpdateFilterExpression(_ context.Context, id, expression string) error {
	f := s.filters[id]
	f.Expression = expression
	s.filters[id] = f
	return nil
}
func (s *fakeStore) UpdateFilterRuleID(_ context.Context, id, ruleID string) error {
	f := s.filters[id]
	f.RuleID = ruleID
	s.filters[id] = f
	return nil
}
func (s *fakeStore) DeleteFilter(_ context.Context, id string) error {
	delete(s.filters, id)
	return nil
}
func (s *fakeStore) InsertNongrata(_ context.Context, n store.Nongrata) (int64, error) {
	s.nongratas[n.ID] = n
	return n.ID, nil
}
func (s *fakeStore) FindNongrataByRestrictionValue(context.Context, string) (*store.Nongrata, error) {
	return nil, nil
}
func (s *fakeStore) SelectExpiredNongratas(_ context.Context, now time.Time) ([]store.Nongrata, error) {
	var out []store.Nongrata
	for _, n := range s.nongratas {
		if !n.ExpiresAt.After(now) {
			out = append(out, n)
		}
	}
	return out, nil
}
func (s *fakeStore) DeleteNongrata(_ context.Context, id int64) error {
	delete(s.nongratas, id)
	return nil
}
func (s *fakeStore) UpdateNongrata(_ context.Context, id int64, reason, analyzerID string, expiresAt time.Time) error {
	return nil
}
func (s *fakeStore) Close() error { return nil }

type fakeUpstream struct {
	calls []string
}

func (u *fakeUpstream) CreateFilter(context.Context, string, string) (string, error) {
	u.calls = append(u.calls, "create_filter")
	return "", nil
}
func (u *fakeUpstream) UpdateFilter(context.Context, string, string) error {
	u.calls = append(u.calls, "update_filter")
	return nil
}
func (u *fakeUpstream) CreateRule(context.Context, string, string) (string, error) {
	u.calls = append(u.calls, "create_rule")
	return "", nil
}
func (u *fakeUpstream) DeleteRule(context.Context, string) error {
	u.calls = append(u.calls, "delete_rule")
	return nil
}

// Scenario 6: TTL expiry drives invalidation for both clauses of one filter.
func TestTickDeletesEmptyFilter(t *testing.T) {
	now := time.Date(2024, 1, 1, 1, 0, 1, 0, time.UTC)
	s := &fakeStore{
		filters: map[string]filteralgebra.Filter{
			"f1": {ID: "f1", RuleID: "r1", Kind: filteralgebra.KindIP, Expression: "(ip.src eq 1.2.3.4) or (ip.src eq 5.6.7.8)"},
		},
		nongratas: map[int64]store.Nongrata{
			1: {ID: 1, FilterID: "f1", RestrictionValue: "(ip.src eq 1.2.3.4)", ExpiresAt: now.Add(-time.Minute)},
			2: {ID: 2, FilterID: "f1", RestrictionValue: "(ip.src eq 5.6.7.8)", ExpiresAt: now.Add(-time.Minute)},
		},
	}
	u := &fakeUpstream{}
	inv := &Invalidator{Store: s, Upstream: u, Logger: zerolog.Nop(), Now: func() time.Time { return now }}

	require.NoError(t, inv.Tick(context.Background()))

	require.Empty(t, s.nongratas)
	require.Empty(t, s.filters)
	require.Equal(t, []string{"delete_rule"}, u.calls)
}

func TestTickTrimsPartially(t *testing.T) {
	now := time.Date(2024, 1, 1, 1, 0, 1, 0, time.UTC)
	s := &fakeStore{
		filters: map[string]filteralgebra.Filter{
			"f1": {ID: "f1", RuleID: "r1", Kind: filteralgebra.KindIP, Expression: "(ip.src eq 1.2.3.4) or (ip.src eq 5.6.7.8)"},
		},
		nongratas: map[int64]store.Nongrata{
			1: {ID: 1, FilterID: "f1", RestrictionValue: "(ip.src eq 1.2.3.4)", ExpiresAt: now.Add(-time.Minute)},
			2: {ID: 2, FilterID: "f1", RestrictionValue: "(ip.src eq 5.6.7.8)", ExpiresAt: now.Add(time.Hour)},
		},
	}
	u := &fakeUpstream{}
	inv := &Invalidator{Store: s, Upstream: u, Logger: zerolog.Nop(), Now: func() time.Time { return now }}

	require.NoError(t, inv.Tick(context.Background()))

	require.Len(t, s.nongratas, 1)
	require.Equal(t, "(ip.src eq 5.6.7.8)", s.filters["f1"].Expression)
	require.Equal(t, []string{"update_filter"}, u.calls)
}

func TestTickNoExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &fakeStore{filters: map[string]filteralgebra.Filter{}, nongratas: map[int64]store.Nongrata{}}
	u := &fakeUpstream{}
	inv := &Invalidator{Store: s, Upstream: u, Logger: zerolog.Nop(), Now: func() time.Time { return now }}

	require.NoError(t, inv.Tick(context.Background()))
	require.Empty(t, u.calls)
}
