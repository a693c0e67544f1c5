package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/insuranceops/commission-processor/internal/models"
)

// SQLiteStore is the durable carrier recognition store. A process-wide
// mutex serializes writes; sqlite handles cross-process writers.
type SQLiteStore struct {
	db        *sql.DB
	threshold float64
	mu        sync.Mutex
}

// OpenSQLite opens (and if needed creates) the store at path. threshold is
// the fuzzy-recognition overlap; pass 0 for the default.
func OpenSQLite(path string, threshold float64) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS carrier_profiles (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL UNIQUE COLLATE NOCASE,
		file_type   TEXT NOT NULL DEFAULT 'commission',
		transformer TEXT NOT NULL DEFAULT '',
		file_count  INTEGER NOT NULL DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS carrier_fingerprints (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id INTEGER NOT NULL,
		signature  TEXT NOT NULL,
		columns    TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(profile_id, signature)
	);
	CREATE INDEX IF NOT EXISTS idx_fingerprints_signature ON carrier_fingerprints(signature);

	CREATE TABLE IF NOT EXISTS carrier_patterns (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		profile_id INTEGER NOT NULL,
		pattern    TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(profile_id, pattern)
	);

	CREATE TABLE IF NOT EXISTS import_logs (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id       TEXT NOT NULL,
		carrier        TEXT NOT NULL,
		file_name      TEXT NOT NULL DEFAULT '',
		file_type      TEXT NOT NULL DEFAULT '',
		source         TEXT NOT NULL DEFAULT 'api',
		rows_processed INTEGER NOT NULL DEFAULT 0,
		rows_exported  INTEGER NOT NULL DEFAULT 0,
		status         TEXT NOT NULL DEFAULT 'completed',
		error          TEXT NOT NULL DEFAULT '',
		started_at     DATETIME,
		completed_at   DATETIME,
		created_at     DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_import_logs_created ON import_logs(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &SQLiteStore{db: db, threshold: threshold}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// LookupByLayout first tries an exact fingerprint match, then a stored
// filename pattern, then falls back to the column-overlap threshold
// against stored layouts.
func (s *SQLiteStore) LookupByLayout(columns []string, filename string) (*models.CarrierProfile, error) {
	sig := Fingerprint(columns)

	var profileID int64
	err := s.db.QueryRow(
		`SELECT profile_id FROM carrier_fingerprints WHERE signature = ? LIMIT 1`, sig,
	).Scan(&profileID)
	switch {
	case err == nil:
		return s.profileByID(profileID)
	case err != sql.ErrNoRows:
		return nil, &models.PersistenceError{Op: "layout lookup", Err: err}
	}

	if filename != "" {
		id, err := s.lookupByPattern(filename)
		if err != nil {
			return nil, err
		}
		if id != 0 {
			return s.profileByID(id)
		}
	}

	if s.threshold >= 1.0 {
		return nil, nil
	}

	rows, err := s.db.Query(`SELECT profile_id, columns FROM carrier_fingerprints ORDER BY profile_id, id`)
	if err != nil {
		return nil, &models.PersistenceError{Op: "layout lookup", Err: err}
	}
	defer rows.Close()

	bestID := int64(0)
	bestScore := 0.0
	for rows.Next() {
		var id int64
		var colsJSON string
		if err := rows.Scan(&id, &colsJSON); err != nil {
			return nil, &models.PersistenceError{Op: "layout lookup", Err: err}
		}
		var stored []string
		if err := json.Unmarshal([]byte(colsJSON), &stored); err != nil {
			continue
		}
		if score := overlap(stored, columns); score >= s.threshold && score > bestScore {
			bestID, bestScore = id, score
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &models.PersistenceError{Op: "layout lookup", Err: err}
	}
	if bestID == 0 {
		return nil, nil
	}
	return s.profileByID(bestID)
}

func (s *SQLiteStore) lookupByPattern(filename string) (int64, error) {
	rows, err := s.db.Query(`SELECT profile_id, pattern FROM carrier_patterns ORDER BY profile_id, id`)
	if err != nil {
		return 0, &models.PersistenceError{Op: "pattern lookup", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var pattern string
		if err := rows.Scan(&id, &pattern); err != nil {
			return 0, &models.PersistenceError{Op: "pattern lookup", Err: err}
		}
		if matchesPattern(pattern, filename) {
			return id, nil
		}
	}
	if err := rows.Err(); err != nil {
		return 0, &models.PersistenceError{Op: "pattern lookup", Err: err}
	}
	return 0, nil
}

func (s *SQLiteStore) LookupByName(name string) (*models.CarrierProfile, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM carrier_profiles WHERE name = ? COLLATE NOCASE`, strings.TrimSpace(name)).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "name lookup", Err: err}
	}
	return s.profileByID(id)
}

func (s *SQLiteStore) Register(name string, columns []string, filename string, fileType models.OutputKind, transformer string) (*models.CarrierProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &models.ValidationError{Msg: "carrier name must not be empty"}
	}
	if fileType == "" {
		fileType = models.KindCommission
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, &models.PersistenceError{Op: "register", Err: err}
	}
	defer tx.Rollback()

	// Last writer wins on file type and transformer; the unique name
	// constraint makes concurrent first registrations converge on one row.
	if _, err := tx.Exec(
		`INSERT INTO carrier_profiles (name, file_type, transformer, file_count)
		 VALUES (?, ?, ?, 1)
		 ON CONFLICT(name) DO UPDATE SET
			file_type = excluded.file_type,
			transformer = excluded.transformer,
			file_count = file_count + 1`,
		name, string(fileType), transformer,
	); err != nil {
		return nil, &models.PersistenceError{Op: "register", Err: err}
	}

	var id int64
	if err := tx.QueryRow(`SELECT id FROM carrier_profiles WHERE name = ? COLLATE NOCASE`, name).Scan(&id); err != nil {
		return nil, &models.PersistenceError{Op: "register", Err: err}
	}

	if len(columns) > 0 {
		colsJSON, err := json.Marshal(columns)
		if err != nil {
			return nil, &models.PersistenceError{Op: "register", Err: err}
		}
		// Re-registering an identical layout is a no-op.
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO carrier_fingerprints (profile_id, signature, columns) VALUES (?, ?, ?)`,
			id, Fingerprint(columns), string(colsJSON),
		); err != nil {
			return nil, &models.PersistenceError{Op: "register", Err: err}
		}
	}

	if pattern := FilenamePattern(filename); pattern != "" {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO carrier_patterns (profile_id, pattern) VALUES (?, ?)`,
			id, pattern,
		); err != nil {
			return nil, &models.PersistenceError{Op: "register", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &models.PersistenceError{Op: "register", Err: err}
	}
	return s.profileByID(id)
}

func (s *SQLiteStore) ListKnownNames() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM carrier_profiles ORDER BY name`)
	if err != nil {
		return nil, &models.PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &models.PersistenceError{Op: "list", Err: err}
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) LogImport(log models.ImportLog) error {
	_, err := s.db.Exec(
		`INSERT INTO import_logs (batch_id, carrier, file_name, file_type, source,
			rows_processed, rows_exported, status, error, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.BatchID, log.Carrier, log.FileName, string(log.FileType), log.Source,
		log.RowsProcessed, log.RowsExported, log.Status, log.Error,
		log.StartedAt, log.CompletedAt,
	)
	if err != nil {
		return &models.PersistenceError{Op: "import log", Err: err}
	}
	return nil
}

func (s *SQLiteStore) ImportHistory(limit int) ([]models.ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, batch_id, carrier, file_name, file_type, source,
			rows_processed, rows_exported, status, error, started_at, completed_at
		 FROM import_logs ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, &models.PersistenceError{Op: "import history", Err: err}
	}
	defer rows.Close()

	var logs []models.ImportLog
	for rows.Next() {
		var l models.ImportLog
		var fileType string
		if err := rows.Scan(
			&l.ID, &l.BatchID, &l.Carrier, &l.FileName, &fileType, &l.Source,
			&l.RowsProcessed, &l.RowsExported, &l.Status, &l.Error,
			&l.StartedAt, &l.CompletedAt,
		); err != nil {
			return nil, &models.PersistenceError{Op: "import history", Err: err}
		}
		l.FileType = models.OutputKind(fileType)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) profileByID(id int64) (*models.CarrierProfile, error) {
	p := &models.CarrierProfile{ID: id}
	var fileType string
	err := s.db.QueryRow(
		`SELECT name, file_type, transformer, file_count FROM carrier_profiles WHERE id = ?`, id,
	).Scan(&p.Name, &fileType, &p.Transformer, &p.FileCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "profile load", Err: err}
	}
	p.FileType = models.OutputKind(fileType)

	rows, err := s.db.Query(`SELECT signature, columns FROM carrier_fingerprints WHERE profile_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, &models.PersistenceError{Op: "profile load", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var fp models.Fingerprint
		var colsJSON string
		if err := rows.Scan(&fp.Signature, &colsJSON); err != nil {
			return nil, &models.PersistenceError{Op: "profile load", Err: err}
		}
		if err := json.Unmarshal([]byte(colsJSON), &fp.Columns); err != nil {
			return nil, &models.PersistenceError{Op: "profile load", Err: fmt.Errorf("corrupt fingerprint for profile %d: %w", id, err)}
		}
		p.Fingerprints = append(p.Fingerprints, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.PersistenceError{Op: "profile load", Err: err}
	}

	patterns, err := s.db.Query(`SELECT pattern FROM carrier_patterns WHERE profile_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, &models.PersistenceError{Op: "profile load", Err: err}
	}
	defer patterns.Close()

	for patterns.Next() {
		var pattern string
		if err := patterns.Scan(&pattern); err != nil {
			return nil, &models.PersistenceError{Op: "profile load", Err: err}
		}
		p.FilenamePatterns = append(p.FilenamePatterns, pattern)
	}
	return p, patterns.Err()
}
