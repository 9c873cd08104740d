package results

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Journal stores every row the moment it is produced so a crash mid-session
// does not lose the trials already run.
type Journal struct {
	db    *sql.DB
	runID string
	seq   int
}

// RunInfo describes one journaled session.
type RunInfo struct {
	ID         string
	Identifier string
	StartedAt  time.Time
	EndedAt    *time.Time
	Status     string
	Rows       int
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	identifier TEXT NOT NULL,
	startedAt INTEGER NOT NULL,
	endedAt INTEGER,
	status TEXT NOT NULL DEFAULT 'running'
);

CREATE TABLE IF NOT EXISTS trial_rows (
	runId TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	trialIndex INTEGER NOT NULL,
	presentation INTEGER NOT NULL,
	videoFile TEXT NOT NULL,
	expectedSyllable TEXT NOT NULL,
	reportedSyllable TEXT NOT NULL,
	status TEXT NOT NULL,
	recordedAt INTEGER NOT NULL,
	PRIMARY KEY (runId, seq)
);
`

// OpenJournal opens or creates the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	dsn := "file::memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin registers a new run for the session identifier and returns its id.
func (j *Journal) Begin(identifier string) (string, error) {
	id := uuid.NewString()
	_, err := j.db.Exec(`INSERT INTO runs (id, identifier, startedAt) VALUES (?, ?, ?)`,
		id, identifier, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	j.runID = id
	j.seq = 0
	return id, nil
}

// Append stores a row of the current run.
func (j *Journal) Append(r Row) error {
	if j.runID == "" {
		return errors.New("journal: no run started")
	}
	j.seq++
	_, err := j.db.Exec(`
		INSERT INTO trial_rows (runId, seq, trialIndex, presentation, videoFile,
			expectedSyllable, reportedSyllable, status, recordedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID, j.seq, r.TrialIndex, r.Order, r.VideoFile,
		r.ExpectedSyllable, r.ReportedSyllable, string(r.Status), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert row: %w", err)
	}
	return nil
}

// Finish marks the current run as ended with status.
func (j *Journal) Finish(status string) error {
	if j.runID == "" {
		return nil
	}
	_, err := j.db.Exec(`UPDATE runs SET endedAt = ?, status = ? WHERE id = ?`,
		time.Now().UnixMilli(), status, j.runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// Runs lists the journaled runs, newest first.
func (j *Journal) Runs() ([]RunInfo, error) {
	rows, err := j.db.Query(`
		SELECT r.id, r.identifier, r.startedAt, r.endedAt, r.status,
			(SELECT COUNT(*) FROM trial_rows WHERE runId = r.id)
		FROM runs r
		ORDER BY r.startedAt DESC, r.rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		var started int64
		var ended sql.NullInt64
		if err := rows.Scan(&info.ID, &info.Identifier, &started, &ended, &info.Status, &info.Rows); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		info.StartedAt = time.UnixMilli(started)
		if ended.Valid {
			t := time.UnixMilli(ended.Int64)
			info.EndedAt = &t
		}
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// Rows returns the rows of the run with the given id or, failing that, of the
// latest run of the given session identifier.
func (j *Journal) Rows(run string) ([]Row, error) {
	var runID string
	err := j.db.QueryRow(`
		SELECT id FROM runs WHERE id = ? OR identifier = ?
		ORDER BY (id = ?) DESC, startedAt DESC, rowid DESC
		LIMIT 1`, run, run, run).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: no run %q", run)
	}
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}

	rows, err := j.db.Query(`
		SELECT trialIndex, presentation, videoFile, expectedSyllable, reportedSyllable, status
		FROM trial_rows WHERE runId = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var status string
		if err := rows.Scan(&r.TrialIndex, &r.Order, &r.VideoFile, &r.ExpectedSyllable, &r.ReportedSyllable, &status); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Status = Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}
