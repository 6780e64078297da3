// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package store is the transactional persistence layer for filters and
// nongratas. It borrows one connection per operation from a bounded pool;
// no multi-statement transactions are required because the design is
// single-writer (concurrent same-kind bans are not serialized here).
package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	flerrors "github.com/crypto-pepe/firewall-executor/internal/errors"
	"github.com/crypto-pepe/firewall-executor/internal/filteralgebra"
)

// Nongrata is one active ban record.
type Nongrata struct {
	ID               int64
	FilterID         string
	Reason           string
	RestrictionValue string
	RestrictionType  string
	ExpiresAt        time.Time
	IsGlobal         bool
	AnalyzerID       string
}

// ErrNotFound is returned when a lookup by primary key finds no row.
var ErrNotFound = errors.New("store: not found")

// DataStore is the full set of persistence operations the executor and
// invalidator depend on. Defining it as an interface lets tests substitute
// an in-memory fake without touching a real database.
type DataStore interface {
	LoadSchema(ctx context.Context) error

	FindFilterByKind(ctx context.Context, kind filteralgebra.Kind) (*filteralgebra.Filter, error)
	FindFilterByID(ctx context.Context, id string) (*filteralgebra.Filter, error)
	InsertFilter(ctx context.Context, f filteralgebra.Filter) error
	UpdateFilterExpression(ctx context.Context, id, expression string) error
	UpdateFilterRuleID(ctx context.Context, id, ruleID string) error
	DeleteFilter(ctx context.Context, id string) error

	InsertNongrata(ctx context.Context, n Nongrata) (int64, error)
	FindNongrataByRestrictionValue(ctx context.Context, value string) (*Nongrata, error)
	SelectExpiredNongratas(ctx context.Context, now time.Time) ([]Nongrata, error)
	DeleteNongrata(ctx context.Context, id int64) error
	UpdateNongrata(ctx context.Context, id int64, reason, analyzerID string, expiresAt time.Time) error

	Close() error
}

// DBX is the subset of *sql.DB used by Store, narrowed for testability.
type DBX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the Postgres-backed DataStore implementation.
type Store struct {
	db DBX
}

var _ DataStore = (*Store)(nil)

// Config describes how to reach the backing Postgres instance and bounds
// the connection pool borrowed by every Executor/Invalidator operation.
type Config struct {
	User     string
	Password string
	DB       string
	Host     string
	Port     int

	MaxOpenConns int
	MaxIdleConns int
}

// Open connects to Postgres and bounds the pool per cfg.
func Open(cfg Config) (*Store, error) {
	dsn := buildDSN(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, flerrors.Wrap(err, flerrors.KindPoolError, "open database pool")
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = maxOpen
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)

	return &Store{db: db}, nil
}

func buildDSN(cfg Config) string {
	var b strings.Builder
	b.WriteString("host=" + cfg.Host)
	if cfg.Port != 0 {
		b.WriteString(" port=")
		b.WriteString(strconv.Itoa(cfg.Port))
	}
	b.WriteString(" user=" + cfg.User)
	b.WriteString(" password=" + cfg.Password)
	b.WriteString(" dbname=" + cfg.DB)
	b.WriteString(" sslmode=disable")
	return b.String()
}

// NewWithDB wraps an already-open DBX, used by tests against a real
// *sql.DB pointed at a throwaway database, or by an sqlmock-style fake.
func NewWithDB(db DBX) *Store {
	return &Store{db: db}
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	if closer, ok := s.db.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// LoadSchema applies the embedded DDL. It is idempotent: every statement
// uses CREATE TABLE IF NOT EXISTS or CREATE [UNIQUE] INDEX IF NOT EXISTS.
func (s *Store) LoadSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return flerrors.Wrap(err, flerrors.KindDBError, "apply schema")
		}
	}
	return nil
}

func (s *Store) FindFilterByKind(ctx context.Context, kind filteralgebra.Kind) (*filteralgebra.Filter, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, rule_id, kind, expression FROM filters WHERE kind = $1`,
		kind.StorageString(),
	)
	var f filteralgebra.Filter
	var kindStr string
	err := row.Scan(&f.ID, &f.RuleID, &kindStr, &f.Expression)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, flerrors.Wrap(err, flerrors.KindDBError, "find filter by kind")
	}
	f.Kind = filteralgebra.KindFromString(kindStr)
	return &f, nil
}

func (s *Store) FindFilterByID(ctx context.Context, id string) (*filteralgebra.Filter, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, rule_id, kind, expression FROM filters WHERE id = $1`,
		id,
	)
	var f filteralgebra.Filter
	var kindStr string
	err := row.Scan(&f.ID, &f.RuleID, &kindStr, &f.Expression)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, flerrors.Wrap(ErrNotFound, flerrors.KindDBError, "find filter by id "+id)
	}
	if err != nil {
		return nil, flerrors.Wrap(err, flerrors.KindDBError, "find filter by id")
	}
	f.Kind = filteralgebra.KindFromString(kindStr)
	return &f, nil
}

func (s *Store) InsertFilter(ctx context.Context, f filteralgebra.Filter) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO filters (id, rule_id, kind, expression) VALUES ($1, $2, $3, $4)`,
		f.ID, f.RuleID, f.Kind.StorageString(), f.Expression,
	)
	if err != nil {
		return flerrors.Wrap(err, flerrors.KindDBError, "insert filter")
	}
	return nil
}

func (s *Store) UpdateFilterExpression(ctx context.Context, id, expression string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE filters SET expression = $1 WHERE id = $2`,
		expression, id,
	)
	if err != nil {
		return flerrors.Wrap(err, flerrors.KindDBError, "update filter expression")
	}
	return nil
}

func (s *Store) UpdateFilterRuleID(ctx context.Context, id, ruleID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE filters SET rule_id = $1 WHERE id = $2`,
		ruleID, id,
	)
	if err != nil {
		return flerrors.Wrap(err, flerrors.KindDBError, "update filter rule id")
	}
	return nil
}

func (s *Store) DeleteFilter(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM filters WHERE id = $1`, id)
	if err != nil {
		return flerrors.Wrap(err, flerrors.KindDBError, "delete filter")
	}
	return nil
}

func (s *Store) InsertNongrata(ctx context.Context, n Nongrata) (int64, error) {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO nongratas (filter_id, reason, restriction_value, restriction_type, expires_at, is_global, analyzer_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		n.FilterID, n.Reason, n.RestrictionValue, n.RestrictionType, n.ExpiresAt, n.IsGlobal, n.AnalyzerID,
	)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, flerrors.Wrap(err, flerrors.KindDBError, "insert nongrata")
	}
	return id, nil
}

func (s *Store) FindNongrataByRestrictionValue(ctx context.Context, value string) (*Nongrata, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filter_id, reason, restriction_value, restriction_type, expires_at, is_global, analyzer_id
		 FROM nongratas WHERE restriction_value ILIKE '%' || $1 || '%' LIMIT 1`,
		value,
	)
	var n Nongrata
	err := row.Scan(&n.ID, &n.FilterID, &n.Reason, &n.RestrictionValue, &n.RestrictionType, &n.ExpiresAt, &n.IsGlobal, &n.AnalyzerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, flerrors.Wrap(err, flerrors.KindDBError, "find nongrata by restriction value")
	}
	return &n, nil
}

func (s *Store) SelectExpiredNongratas(ctx context.Context, now time.Time) ([]Nongrata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filter_id, reason, restriction_value, restriction_type, expires_at, is_global, analyzer_id
		 FROM nongratas WHERE expires_at <= $1`,
		now,
	)
	if err != nil {
		return nil, flerrors.Wrap(err, flerrors.KindDBError, "select expired nongratas")
	}
	defer rows.Close()

	var out []Nongrata
	for rows.Next() {
		var n Nongrata
		if err := rows.Scan(&n.ID, &n.FilterID, &n.Reason, &n.RestrictionValue, &n.RestrictionType, &n.ExpiresAt, &n.IsGlobal, &n.AnalyzerID); err != nil {
			return nil, flerrors.Wrap(err, flerrors.KindDBError, "scan expired nongrata")
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, flerrors.Wrap(err, flerrors.KindDBError, "iterate expired nongratas")
	}
	return out, nil
}

func (s *Store) DeleteNongrata(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM nongratas WHERE id = $1`, id)
	if err != nil {
		return flerrors.Wrap(err, flerrors.KindDBError, "delete nongrata")
	}
	return nil
}

func (s *Store) UpdateNongrata(ctx context.Context, id int64, reason, analyzerID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE nongratas SET reason = $1, analyzer_id = $2, expires_at = $3 WHERE id = $4`,
		reason, analyzerID, expiresAt, id,
	)
	if err != nil {
		return flerrors.Wrap(err, flerrors.KindDBError, "update nongrata")
	}
	return nil
}
