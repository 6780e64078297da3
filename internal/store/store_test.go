// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/crypto-pepe/firewall-executor/internal/filteralgebra"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func TestFindFilterByKindNone(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, rule_id, kind, expression FROM filters WHERE kind").
		WithArgs("IP").
		WillReturnRows(sqlmock.NewRows([]string{"id", "rule_id", "kind", "expression"}))

	f, err := s.FindFilterByKind(context.Background(), filteralgebra.KindIP)
	require.NoError(t, err)
	require.Nil(t, f)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindFilterByKindFound(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "rule_id", "kind", "expression"}).
		AddRow("f1", "r1", "IP", "(ip.src eq 1.2.3.4)")
	mock.ExpectQuery("SELECT id, rule_id, kind, expression FROM filters WHERE kind").
		WithArgs("IP").
		WillReturnRows(rows)

	f, err := s.FindFilterByKind(context.Background(), filteralgebra.KindIP)
	require.NoError(t, err)
	require.NotNil(t, f)
	require.Equal(t, "f1", f.ID)
	require.Equal(t, filteralgebra.KindIP, f.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertFilter(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO filters").
		WithArgs("f1", "", "IP", "(ip.src eq 1.2.3.4)").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.InsertFilter(context.Background(), filteralgebra.Filter{
		ID: "f1", Kind: filteralgebra.KindIP, Expression: "(ip.src eq 1.2.3.4)",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertNongrataReturnsID(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO nongratas").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := s.InsertNongrata(context.Background(), Nongrata{
		FilterID: "f1", Reason: "r", RestrictionValue: "(ip.src eq 1.2.3.4)",
		RestrictionType: "block", ExpiresAt: time.Now(), IsGlobal: true, AnalyzerID: "a1",
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectExpiredNongratas(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "filter_id", "reason", "restriction_value", "restriction_type", "expires_at", "is_global", "analyzer_id"}).
		AddRow(int64(1), "f1", "r", "(ip.src eq 1.2.3.4)", "block", now, true, "a1")
	mock.ExpectQuery("SELECT id, filter_id, reason, restriction_value, restriction_type, expires_at, is_global, analyzer_id\\s+FROM nongratas WHERE expires_at").
		WillReturnRows(rows)

	out, err := s.SelectExpiredNongratas(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, int64(1), out[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFilter(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM filters WHERE id").WithArgs("f1").WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.DeleteFilter(context.Background(), "f1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
