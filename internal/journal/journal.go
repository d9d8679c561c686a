package journal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/manifestly/manifestly-go/internal/db"
	"github.com/manifestly/manifestly-go/internal/manifest"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    host TEXT NOT NULL,
    ts TEXT NOT NULL, -- RFC3339
    op TEXT NOT NULL,
    path TEXT NOT NULL,
    digest TEXT NOT NULL,
    source_root TEXT NOT NULL,
    target_root TEXT NOT NULL,
    dry_run INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_run ON sync_history(run_id);
CREATE INDEX IF NOT EXISTS idx_history_path ON sync_history(path);
`

// Entry is one recorded sync operation.
type Entry struct {
	RunID      string    `json:"run_id"`
	Host       string    `json:"host"`
	Time       time.Time `json:"time"`
	Op         string    `json:"op"`
	Path       string    `json:"path"`
	Digest     string    `json:"digest"`
	SourceRoot string    `json:"source_root"`
	TargetRoot string    `json:"target_root"`
	DryRun     bool      `json:"dry_run"`
}

// dbEntry scans rows where time is stored as TEXT.
type dbEntry struct {
	RunID      string `db:"run_id"`
	Host       string `db:"host"`
	Ts         string `db:"ts"`
	Op         string `db:"op"`
	Path       string `db:"path"`
	Digest     string `db:"digest"`
	SourceRoot string `db:"source_root"`
	TargetRoot string `db:"target_root"`
	DryRun     bool   `db:"dry_run"`
}

func (e dbEntry) entry() Entry {
	ts, err := time.Parse(time.RFC3339, e.Ts)
	if err != nil {
		slog.Error("bad timestamp in sync history", "value", e.Ts, "error", err)
	}
	return Entry{
		RunID:      e.RunID,
		Host:       e.Host,
		Time:       ts,
		Op:         e.Op,
		Path:       e.Path,
		Digest:     e.Digest,
		SourceRoot: e.SourceRoot,
		TargetRoot: e.TargetRoot,
		DryRun:     e.DryRun,
	}
}

// Journal records sync runs in a SQLite database.
type Journal struct {
	db     *sqlx.DB
	dbPath string
}

// New returns an unopened journal backed by the database at dbPath.
func New(dbPath string) *Journal {
	return &Journal{dbPath: dbPath}
}

// Open connects to the database and initializes the schema.
func (j *Journal) Open() error {
	if j.db != nil {
		return fmt.Errorf("journal already open")
	}

	database, err := db.NewSqliteDB(db.WithPath(j.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return fmt.Errorf("initialize journal schema: %w", err)
	}

	j.db = database
	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return fmt.Errorf("journal not open")
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// Run ties the operations of one sync invocation together under a
// shared run id.
type Run struct {
	ID         string
	journal    *Journal
	host       string
	sourceRoot string
	targetRoot string
	dryRun     bool
}

// Begin starts a new run. The host column is the stable machine id,
// falling back to the hostname.
func (j *Journal) Begin(sourceRoot, targetRoot string, dryRun bool) *Run {
	host, err := machineid.ID()
	if err != nil {
		host, _ = os.Hostname()
	}
	return &Run{
		ID:         uuid.NewString(),
		journal:    j,
		host:       host,
		sourceRoot: sourceRoot,
		targetRoot: targetRoot,
		dryRun:     dryRun,
	}
}

// Record persists one sync operation under this run.
func (r *Run) Record(op manifest.Op) error {
	if r.journal.db == nil {
		return fmt.Errorf("journal not open")
	}

	row := dbEntry{
		RunID:      r.ID,
		Host:       r.host,
		Ts:         time.Now().UTC().Format(time.RFC3339),
		Op:         string(op.Type),
		Path:       op.Path,
		Digest:     op.Digest,
		SourceRoot: r.sourceRoot,
		TargetRoot: r.targetRoot,
		DryRun:     r.dryRun,
	}

	query := `INSERT INTO sync_history (run_id, host, ts, op, path, digest, source_root, target_root, dry_run)
	          VALUES (:run_id, :host, :ts, :op, :path, :digest, :source_root, :target_root, :dry_run)`
	if _, err := r.journal.db.NamedExec(query, row); err != nil {
		return fmt.Errorf("record %s %s: %w", op.Type, op.Path, err)
	}
	return nil
}

const selectColumns = `SELECT run_id, host, ts, op, path, digest, source_root, target_root, dry_run FROM sync_history`

// Recent returns the latest n operations, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	if j.db == nil {
		return nil, fmt.Errorf("journal not open")
	}

	var rows []dbEntry
	if err := j.db.Select(&rows, selectColumns+" ORDER BY id DESC LIMIT ?", n); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return toEntries(rows), nil
}

// ForPath returns every recorded operation for a path, newest first.
func (j *Journal) ForPath(path string) ([]Entry, error) {
	if j.db == nil {
		return nil, fmt.Errorf("journal not open")
	}

	var rows []dbEntry
	if err := j.db.Select(&rows, selectColumns+" WHERE path = ? ORDER BY id DESC", path); err != nil {
		return nil, fmt.Errorf("query history for %s: %w", path, err)
	}
	return toEntries(rows), nil
}

// Count returns the number of recorded operations.
func (j *Journal) Count() (int, error) {
	if j.db == nil {
		return 0, fmt.Errorf("journal not open")
	}

	var count int
	if err := j.db.Get(&count, "SELECT COUNT(*) FROM sync_history"); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

func toEntries(rows []dbEntry) []Entry {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries
}
