package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/routinekit/internal/run"
	"github.com/rendis/routinekit/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return upgradeSchema(ctx, s.db)
}

// SchemaVersion reports the newest migration applied to the database.
func (s *LibSQLStore) SchemaVersion(ctx context.Context) (int, error) {
	return schemaVersion(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Routines ---

// SaveRoutine upserts r. Every subroutine item that carries its own graph is
// saved as a row of its own and kept in the parent document as a summary, so
// loading the parent later leaves those items to be hydrated on demand.
func (s *LibSQLStore) SaveRoutine(ctx context.Context, r *schema.Routine) error {
	if r == nil || r.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "routine id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := saveRoutineTx(ctx, tx, r, 0); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit routine: %w", err)
	}
	return nil
}

func saveRoutineTx(ctx context.Context, tx *sql.Tx, r *schema.Routine, depth int) error {
	if depth > run.MaxPathDepth {
		return schema.NewErrorf(schema.ErrCodeValidation, "routine %q nests deeper than %d levels", r.ID, run.MaxPathDepth)
	}
	doc := r.Clone()
	for i := range doc.Nodes {
		data, ok := doc.Nodes[i].RoutineList()
		if !ok {
			continue
		}
		items := make([]schema.RoutineListItem, len(data.Items))
		copy(items, data.Items)
		for j, item := range items {
			sub := item.Routine
			if sub == nil || sub.ID == "" || sub.Complexity <= 1 || len(sub.Nodes) == 0 {
				continue
			}
			if err := saveRoutineTx(ctx, tx, sub, depth+1); err != nil {
				return err
			}
			items[j].Routine = summarize(sub)
		}
		data.Items = items
		doc.Nodes[i].Data = data
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal routine %s: %w", r.ID, err)
	}
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO routines (id, title, complexity, node_count, document, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title=excluded.title, complexity=excluded.complexity,
		   node_count=excluded.node_count, document=excluded.document,
		   version=routines.version+1, updated_at=excluded.updated_at`,
		r.ID, titleOf(r.Translations), r.Complexity, len(r.Nodes), string(raw), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert routine %s: %w", r.ID, err)
	}
	return nil
}

func (s *LibSQLStore) GetRoutine(ctx context.Context, id string) (*RoutineRecord, error) {
	rec := &RoutineRecord{}
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT title, document, version, created_at, updated_at FROM routines WHERE id = ?`, id,
	).Scan(&rec.Title, &doc, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("routine", id)
	}
	if err != nil {
		return nil, err
	}
	rec.Routine = &schema.Routine{}
	if err := json.Unmarshal([]byte(doc), rec.Routine); err != nil {
		return nil, fmt.Errorf("unmarshal routine %s: %w", id, err)
	}
	return rec, nil
}

// FetchRoutine loads the graph of a routine. It satisfies run.Fetcher: a missing
// routine is NOT_FOUND, any other failure is a retryable STORE_ERROR.
func (s *LibSQLStore) FetchRoutine(ctx context.Context, id string) (*schema.Routine, error) {
	rec, err := s.GetRoutine(ctx, id)
	if err == nil {
		return rec.Routine, nil
	}
	if _, ok := err.(*schema.GraphError); ok {
		return nil, err
	}
	return nil, schema.NewErrorf(schema.ErrCodeStore, "fetch routine %q", id).WithCause(err)
}

func (s *LibSQLStore) ListRoutines(ctx context.Context, filter RoutineFilter) ([]*RoutineSummary, error) {
	var where []string
	var args []any

	if filter.TitlePrefix != "" {
		where = append(where, "title LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(filter.TitlePrefix)+"%")
	}

	query := `SELECT id, title, complexity, node_count, version, updated_at FROM routines`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY title, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RoutineSummary
	for rows.Next() {
		rs := &RoutineSummary{}
		if err := rows.Scan(&rs.ID, &rs.Title, &rs.Complexity, &rs.NodeCount, &rs.Version, &rs.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// DeleteRoutine removes the routine together with its runs and their events.
func (s *LibSQLStore) DeleteRoutine(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM routines WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res, "routine", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM events WHERE session_id IN (SELECT id FROM runs WHERE routine_id = ?)`, id,
	); err != nil {
		return fmt.Errorf("delete routine events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE routine_id = ?`, id); err != nil {
		return fmt.Errorf("delete routine runs: %w", err)
	}
	return tx.Commit()
}

// --- Runs ---

func (s *LibSQLStore) SaveBookmark(ctx context.Context, b run.Bookmark, language string) error {
	if b.RunID == "" {
		return schema.NewError(schema.ErrCodeValidation, "run id is required")
	}
	progress := b.Progress
	if progress == nil {
		progress = []run.Path{}
	}
	raw, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if language == "" {
		language = "en"
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, routine_id, cursor, progress, status, language, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET cursor=excluded.cursor, progress=excluded.progress,
		   status=excluded.status, language=excluded.language, updated_at=excluded.updated_at`,
		b.RunID, b.RoutineID, b.Cursor.String(), string(raw), string(b.Status), language, now, now,
	)
	return err
}

func (s *LibSQLStore) GetBookmark(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, routine_id, cursor, progress, status, language, created_at, updated_at
		 FROM runs WHERE id = ?`, runID,
	)
	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("run", runID)
	}
	return rec, err
}

func (s *LibSQLStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	var where []string
	var args []any

	if filter.RoutineID != "" {
		where = append(where, "routine_id = ?")
		args = append(args, filter.RoutineID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT id, routine_id, cursor, progress, status, language, created_at, updated_at FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res, "run", runID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run events: %w", err)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	rec := &RunRecord{}
	var cursor, progress, status string
	if err := row.Scan(&rec.RunID, &rec.RoutineID, &cursor, &progress, &status, &rec.Language, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := run.ParsePath(cursor)
	if err != nil {
		return nil, fmt.Errorf("run %s cursor: %w", rec.RunID, err)
	}
	rec.Cursor = p
	if err := json.Unmarshal([]byte(progress), &rec.Progress); err != nil {
		return nil, fmt.Errorf("run %s progress: %w", rec.RunID, err)
	}
	rec.Status = schema.RunStatus(status)
	return rec, nil
}

// --- Events ---

func (s *LibSQLStore) AppendEvent(ctx context.Context, event *Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE session_id = ?`, event.SessionID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq
	event.Timestamp = timeOrNow(event.Timestamp)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (session_id, sequence, event_type, node_id, payload, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.SessionID, seq, event.Type, nullStr(event.NodeID), nullRaw(event.Payload), event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		event.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

func (s *LibSQLStore) GetEvents(ctx context.Context, sessionID string, since int64) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, sequence, event_type, node_id, payload, timestamp
		 FROM events WHERE session_id = ? AND sequence > ? ORDER BY sequence ASC`,
		sessionID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *LibSQLStore) GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*Event, error) {
	where := []string{"event_type = ?"}
	args := []any{eventType}

	if filter.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Since != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, session_id, sequence, event_type, node_id, payload, timestamp FROM events
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY timestamp DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		e := &Event{}
		var nodeID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Sequence, &e.Type, &nodeID, &payload, &e.Timestamp); err != nil {
			return nil, err
		}
		e.NodeID = nodeID.String
		e.Payload = rawOrNil(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Helpers ---

// summarize strips a routine down to the fields a parent document keeps.
func summarize(r *schema.Routine) *schema.Routine {
	return &schema.Routine{ID: r.ID, Complexity: r.Complexity, Translations: r.Translations}
}

func titleOf(t schema.Translations) string {
	if tr := t.ByLanguage("en"); tr != nil && tr.Title != "" {
		return tr.Title
	}
	for _, tr := range t {
		if tr.Title != "" {
			return tr.Title
		}
	}
	return ""
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func storeNotFound(resource, id string) *schema.GraphError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}
