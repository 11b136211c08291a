package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding chats and their messages. The
// append/read contract for messages is strict chronological order; the
// orchestrator depends on it for full-history replay.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "flowsage.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Chats ---

const chatColumns = "id, title, phase, completed, workflow_json, recommendations_md, created_at, updated_at"

// CreateChat inserts a new chat at the discovery phase and returns it.
func (s *Store) CreateChat(title string) (Chat, error) {
	c := Chat{
		ID:        uuid.New().String(),
		Title:     title,
		Phase:     PhaseDiscovery,
		CreatedAt: time.Now().UTC(),
	}
	c.UpdatedAt = c.CreatedAt

	_, err := s.db.Exec(`
		INSERT INTO chats (id, title, phase, completed, workflow_json, recommendations_md, created_at, updated_at)
		VALUES (?, ?, ?, 0, '', '', ?, ?)`,
		c.ID, c.Title, int(c.Phase), c.CreatedAt.Format(time.RFC3339Nano), c.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Chat{}, err
	}
	return c, nil
}

// GetChat returns the chat with the given id, or ErrNotFound.
func (s *Store) GetChat(id string) (Chat, error) {
	row := s.db.QueryRow("SELECT "+chatColumns+" FROM chats WHERE id = ?", id)
	return scanChat(row)
}

// ListChats returns all chats, most recently updated first.
func (s *Store) ListChats() ([]Chat, error) {
	rows, err := s.db.Query("SELECT " + chatColumns + " FROM chats ORDER BY updated_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (Chat, error) {
	var (
		c                    Chat
		phase, completed     int
		createdAt, updatedAt string
	)
	err := row.Scan(&c.ID, &c.Title, &phase, &completed, &c.WorkflowJSON, &c.Recommendations, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, err
	}
	c.Phase = Phase(phase)
	c.Completed = completed != 0
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Chat{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Chat{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return c, nil
}

// updateChat runs an UPDATE touching updated_at and maps zero affected rows
// to ErrNotFound.
func (s *Store) updateChat(id, setClause string, args ...any) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := "UPDATE chats SET " + setClause + ", updated_at = ? WHERE id = ?"
	args = append(args, now, id)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPhase updates the chat's phase.
func (s *Store) SetPhase(id string, phase Phase) error {
	return s.updateChat(id, "phase = ?", int(phase))
}

// SetCompleted updates the chat's completed flag.
func (s *Store) SetCompleted(id string, completed bool) error {
	v := 0
	if completed {
		v = 1
	}
	return s.updateChat(id, "completed = ?", v)
}

// SetWorkflowJSON stores the serialized workflow document, overwriting any
// previous extraction.
func (s *Store) SetWorkflowJSON(id, workflowJSON string) error {
	return s.updateChat(id, "workflow_json = ?", workflowJSON)
}

// SetRecommendations stores the generated opportunity markdown.
func (s *Store) SetRecommendations(id, markdown string) error {
	return s.updateChat(id, "recommendations_md = ?", markdown)
}

// SetTitle updates the chat title.
func (s *Store) SetTitle(id, title string) error {
	return s.updateChat(id, "title = ?", title)
}

// --- Messages ---

// AppendMessage appends a turn to the chat in chronological order.
func (s *Store) AppendMessage(chatID, role, content string) (Message, error) {
	m := Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (id, chat_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.Role, m.Content, m.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

// GetMessages returns all turns of a chat in append order.
func (s *Store) GetMessages(chatID string) ([]Message, error) {
	return s.queryMessages(`
		SELECT id, chat_id, role, content, created_at FROM messages
		WHERE chat_id = ? ORDER BY created_at ASC, rowid ASC`, chatID)
}

// GetFirstMessages returns the first n turns of a chat in append order.
func (s *Store) GetFirstMessages(chatID string, n int) ([]Message, error) {
	return s.queryMessages(`
		SELECT id, chat_id, role, content, created_at FROM messages
		WHERE chat_id = ? ORDER BY created_at ASC, rowid ASC LIMIT ?`, chatID, n)
}

func (s *Store) queryMessages(query string, args ...any) ([]Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
