package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmhodges/clock"
	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

/**
DB tables:
- reminders:
	- id: integer - reminder ID, autoincrement, never reused
	- chat id: bigint - chat to deliver into
	- creator id: bigint - user who owns the reminder
	- text: text - reminder text
	- remind at: text - delivery time, minute precision
	- is sent: integer - legacy delivery flag, derived from status
	- status: text - scheduled/sent/completed/cancelled/failed
	- mention target id: bigint - resolvable user to mention, optional
	- mention target name: text - display name to mention, optional
	- created at: text - creation time

Indexes:
- (status, remind_at) - due scan
- (chat_id, creator_id) - listing
*/

const createSchema = `
CREATE TABLE IF NOT EXISTS reminders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id INTEGER NOT NULL,
	creator_id INTEGER NOT NULL,
	text TEXT NOT NULL,
	remind_at TEXT NOT NULL,
	is_sent INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'scheduled',
	mention_target_id INTEGER,
	mention_target_name TEXT,
	created_at TEXT NOT NULL
);`

// Optional columns added after the first schema version, in the order they
// appeared. Migration adds whichever of them an older store is missing.
var migrationColumns = []struct {
	name string
	def  string
}{
	{"status", `ALTER TABLE reminders ADD COLUMN status TEXT NOT NULL DEFAULT 'scheduled'`},
	{"mention_target_id", `ALTER TABLE reminders ADD COLUMN mention_target_id INTEGER`},
	{"mention_target_name", `ALTER TABLE reminders ADD COLUMN mention_target_name TEXT`},
}

var createIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders (status, remind_at)`,
	`CREATE INDEX IF NOT EXISTS idx_reminders_owner ON reminders (chat_id, creator_id)`,
}

// Store is the durable reminder table plus its state-transition rules. All
// cross-goroutine races on a reminder are resolved here with conditional
// updates; callers never need external locking.
type Store struct {
	db  *sql.DB
	clk clock.Clock
}

// Open opens (creating if necessary) the SQLite database at path and brings
// its schema up to date. Migration is idempotent.
func Open(path string) (*Store, error) {
	d, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, errors.Wrap(err, "failed opening database")
	}

	if err = d.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed connecting to database")
	}

	s := &Store{db: d, clk: clock.New()}
	if err = s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the reminders table on first start and upgrades a store
// created by an older schema version: missing optional columns are added
// with safe defaults and status is backfilled from the legacy is_sent flag.
// Existing ids, texts and timestamps are never touched.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(createSchema); err != nil {
		return errors.Wrap(err, "failed creating schema")
	}

	existing, err := s.columns()
	if err != nil {
		return err
	}

	for _, col := range migrationColumns {
		if existing[col.name] {
			continue
		}
		if _, err := s.db.Exec(col.def); err != nil {
			return errors.Wrapf(err, "failed adding column %s", col.name)
		}
	}

	// Rows written before the status column existed carry the column default
	// and a possibly-set legacy flag; derive their real state. Rows written
	// after always keep status and is_sent in agreement, so re-running this
	// changes nothing.
	if _, err := s.db.Exec(`UPDATE reminders SET status=? WHERE is_sent=1 AND status=?`,
		StatusSent, StatusScheduled); err != nil {
		return errors.Wrap(err, "failed backfilling status")
	}

	for _, idx := range createIndexes {
		if _, err := s.db.Exec(idx); err != nil {
			return errors.Wrap(err, "failed creating index")
		}
	}

	return nil
}

func (s *Store) columns() (map[string]bool, error) {
	rows, err := s.db.Query(`PRAGMA table_info(reminders)`)
	if err != nil {
		return nil, errors.Wrap(err, "failed reading table info")
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, errors.Wrap(err, "failed scanning table info")
		}
		cols[name] = true
	}

	return cols, rows.Err()
}

func formatMinute(t time.Time) string {
	return t.Format(TimeLayout)
}
