package collective

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/conclave-ai/conclave/internal/classify"
)

// Store provides SQLite-backed persistence for the engine's learned
// reliability and domain expertise, so restarts do not reset learning.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// DefaultDBPath returns the path to the learning database under the
// user's data directory.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "conclave", "learning.db")
}

// NewStore opens (creating if necessary) the learning database at the
// given path and applies pending migrations.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL so outcome writes don't block reliability reads.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{db: conn, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate learning schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS learning_schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM learning_schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Reliability},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec("INSERT INTO learning_schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

const migrationV1Reliability = `
CREATE TABLE IF NOT EXISTS agent_reliability (
	agent_id TEXT PRIMARY KEY,
	reliability REAL NOT NULL,
	samples INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_expertise (
	agent_id TEXT NOT NULL,
	domain TEXT NOT NULL,
	score REAL NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (agent_id, domain)
);

CREATE INDEX IF NOT EXISTS idx_agent_expertise_domain ON agent_expertise(domain);
`

// SaveAgent upserts one agent's reliability and the expertise score of
// the domain it just worked in.
func (s *Store) SaveAgent(agentID string, reliability float64, samples int, domain classify.Domain, domainScore float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO agent_reliability (agent_id, reliability, samples, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			reliability = excluded.reliability,
			samples = excluded.samples,
			updated_at = excluded.updated_at
	`, agentID, reliability, samples, now)
	if err != nil {
		return fmt.Errorf("save reliability: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO agent_expertise (agent_id, domain, score, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(agent_id, domain) DO UPDATE SET
			score = excluded.score,
			updated_at = excluded.updated_at
	`, agentID, string(domain), domainScore, now)
	if err != nil {
		return fmt.Errorf("save expertise: %w", err)
	}
	return nil
}

// LoadInto seeds the engine with all persisted learning state.
func (s *Store) LoadInto(e *Engine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expertise := make(map[string]map[classify.Domain]float64)
	rows, err := s.db.Query("SELECT agent_id, domain, score FROM agent_expertise")
	if err != nil {
		return fmt.Errorf("load expertise: %w", err)
	}
	for rows.Next() {
		var agentID, domain string
		var score float64
		if err := rows.Scan(&agentID, &domain, &score); err != nil {
			rows.Close()
			return fmt.Errorf("scan expertise: %w", err)
		}
		if expertise[agentID] == nil {
			expertise[agentID] = make(map[classify.Domain]float64)
		}
		expertise[agentID][classify.Domain(domain)] = score
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = s.db.Query("SELECT agent_id, reliability, samples FROM agent_reliability")
	if err != nil {
		return fmt.Errorf("load reliability: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var agentID string
		var reliability float64
		var samples int
		if err := rows.Scan(&agentID, &reliability, &samples); err != nil {
			return fmt.Errorf("scan reliability: %w", err)
		}
		e.seedAgent(agentID, reliability, samples, expertise[agentID])
	}
	return rows.Err()
}
