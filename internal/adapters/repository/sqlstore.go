package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/metrics"
)

// dialect holds the backend specific SQL.
type dialect struct {
	backend Backend
	schema  string
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
}

var sqliteDialect = dialect{
	backend:     BackendSQLite,
	placeholder: func(int) string { return "?" },
	schema: `
CREATE TABLE IF NOT EXISTS arrangements (
	event_id     TEXT PRIMARY KEY,
	id           TEXT NOT NULL,
	version      INTEGER NOT NULL,
	label        TEXT NOT NULL DEFAULT '',
	score        REAL NOT NULL DEFAULT 0.0,
	groups_json  TEXT NOT NULL DEFAULT '[]',
	created_at   INTEGER NOT NULL DEFAULT 0
);
`,
}

var postgresDialect = dialect{
	backend:     BackendPostgres,
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	schema: `
CREATE TABLE IF NOT EXISTS arrangements (
	event_id     TEXT PRIMARY KEY,
	id           TEXT NOT NULL,
	version      BIGINT NOT NULL,
	label        TEXT NOT NULL DEFAULT '',
	score        DOUBLE PRECISION NOT NULL DEFAULT 0,
	groups_json  TEXT NOT NULL DEFAULT '[]',
	created_at   BIGINT NOT NULL DEFAULT 0
);
`,
}

// bind replaces each ? in q with the dialect's placeholder.
func (d dialect) bind(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore persists arrangements in a SQL database. The arrangement row is
// versioned; writes use optimistic locking on the version column.
type SQLStore struct {
	db       *sql.DB
	dialect  dialect
	settings settings
}

func newSQLStore(db *sql.DB, d dialect, s settings) *SQLStore {
	if s.maxOpenConns > 0 {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	return &SQLStore{db: db, dialect: d, settings: s}
}

// Migrate creates the schema if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Current implements Store.Current.
func (s *SQLStore) Current(ctx context.Context, eventID string) (model.Arrangement, error) {
	start := time.Now()
	defer s.observe("current", start)

	q := s.dialect.bind(`SELECT id, event_id, version, label, score, groups_json, created_at
FROM arrangements WHERE event_id = ?`)
	var (
		arr       model.Arrangement
		groupsRaw string
		created   int64
	)
	err := s.db.QueryRowContext(ctx, q, eventID).Scan(&arr.ID, &arr.EventID, &arr.Version, &arr.Label, &arr.Score, &groupsRaw, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Arrangement{}, notFound(eventID)
		}
		return model.Arrangement{}, fmt.Errorf("get arrangement: %w", err)
	}
	if err := json.Unmarshal([]byte(groupsRaw), &arr.Groups); err != nil {
		return model.Arrangement{}, fmt.Errorf("decode groups: %w", err)
	}
	arr.CreatedAt = time.Unix(0, created).UTC()
	return arr, nil
}

// Replace implements Store.Replace.
func (s *SQLStore) Replace(ctx context.Context, arr model.Arrangement, expected int64) (model.Arrangement, error) {
	start := time.Now()
	defer s.observe("replace", start)

	next := prepare(arr, expected, s.settings)
	groups, err := json.Marshal(next.Groups)
	if err != nil {
		return model.Arrangement{}, fmt.Errorf("encode groups: %w", err)
	}

	var res sql.Result
	if expected == 0 {
		q := s.dialect.bind(`INSERT INTO arrangements (event_id, id, version, label, score, groups_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (event_id) DO NOTHING`)
		res, err = s.db.ExecContext(ctx, q, next.EventID, next.ID, next.Version, next.Label, next.Score, string(groups), next.CreatedAt.UnixNano())
	} else {
		q := s.dialect.bind(`UPDATE arrangements SET
		id = ?,
		version = version + 1,
		label = ?,
		score = ?,
		groups_json = ?,
		created_at = ?
	WHERE event_id = ? AND version = ?`)
		res, err = s.db.ExecContext(ctx, q, next.ID, next.Label, next.Score, string(groups), next.CreatedAt.UnixNano(), next.EventID, expected)
	}
	if err != nil {
		return model.Arrangement{}, fmt.Errorf("replace arrangement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Arrangement{}, fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return model.Arrangement{}, conflict(next.EventID, expected)
	}
	metrics.UpdateGroupsTotal(len(next.Groups))
	return next, nil
}

// Close implements Store.Close.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) observe(op string, start time.Time) {
	metrics.RecordRepositoryLatency(string(s.dialect.backend), op, float64(time.Since(start).Microseconds())/1000)
}
