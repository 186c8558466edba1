package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prepstack/interviewd/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		job_title TEXT NOT NULL,
		company_domain TEXT NOT NULL,
		status TEXT NOT NULL,
		summary TEXT,
		error TEXT,
		questions_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		last_active_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_last_active ON sessions(last_active_at) WHERE status = 'active';

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		audio_storage_path TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);

	CREATE TABLE IF NOT EXISTS recordings (
		recording_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		content_type TEXT NOT NULL,
		filename TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateJob inserts a new job record.
func (s *SQLiteStore) CreateJob(ctx context.Context, job *domain.Job) error {
	questions, err := json.Marshal(job.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	query := `
	INSERT INTO jobs (job_id, job_title, company_domain, status, summary, error, questions_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		job.ID, job.JobTitle, job.Company.Domain, string(job.Status),
		nullable(job.Summary), nullable(job.Error), string(questions),
		job.CreatedAt.Unix(), job.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a snapshot of a job by ID.
func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT job_id, job_title, company_domain, status, summary, error,
		       questions_json, created_at, updated_at
		FROM jobs WHERE job_id = ?`

	row := s.db.QueryRowContext(ctx, query, jobID)

	var job domain.Job
	var status string
	var summary, errDetail, questionsJSON sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&job.ID, &job.JobTitle, &job.Company.Domain, &status,
		&summary, &errDetail, &questionsJSON, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job row: %w", err)
	}

	job.Status = domain.JobStatus(status)
	job.Summary = summary.String
	job.Error = errDetail.String
	job.CreatedAt = time.Unix(createdAt, 0)
	job.UpdatedAt = time.Unix(updatedAt, 0)
	if questionsJSON.Valid && questionsJSON.String != "" {
		if err := json.Unmarshal([]byte(questionsJSON.String), &job.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
	}

	return &job, nil
}

// CompleteJob transitions a pending job to done with its results.
// The status guard in the WHERE clause makes the transition one-shot.
func (s *SQLiteStore) CompleteJob(ctx context.Context, jobID, summary string, questions []domain.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	query := `
		UPDATE jobs SET status = ?, summary = ?, questions_json = ?, updated_at = ?
		WHERE job_id = ? AND status = ?`
	result, err := s.db.ExecContext(ctx, query,
		string(domain.JobDone), summary, string(data), time.Now().Unix(),
		jobID, string(domain.JobPending),
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return s.checkJobTransition(ctx, result, jobID)
}

// FailJob transitions a pending job to failed with an error detail.
func (s *SQLiteStore) FailJob(ctx context.Context, jobID, detail string) error {
	query := `
		UPDATE jobs SET status = ?, error = ?, updated_at = ?
		WHERE job_id = ? AND status = ?`
	result, err := s.db.ExecContext(ctx, query,
		string(domain.JobFailed), detail, time.Now().Unix(),
		jobID, string(domain.JobPending),
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return s.checkJobTransition(ctx, result, jobID)
}

func (s *SQLiteStore) checkJobTransition(ctx context.Context, result sql.Result, jobID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		// Either the job is unknown or it already reached a terminal
		// status; the latter is a no-op, not an error.
		if _, err := s.GetJob(ctx, jobID); err != nil {
			return err
		}
		slog.Warn("job transition skipped, already terminal", "job_id", jobID)
	}
	return nil
}

// CreateSession inserts a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
	INSERT INTO sessions (session_id, job_id, status, created_at, last_active_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.JobID, string(session.Status),
		session.CreatedAt.Unix(), session.LastActiveAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a snapshot of a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
		SELECT session_id, job_id, status, created_at, last_active_at
		FROM sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var session domain.Session
	var status string
	var createdAt, lastActiveAt int64

	err := row.Scan(&session.ID, &session.JobID, &status, &createdAt, &lastActiveAt)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.Status = domain.SessionStatus(status)
	session.CreatedAt = time.Unix(createdAt, 0)
	session.LastActiveAt = time.Unix(lastActiveAt, 0)

	return &session, nil
}

// TouchSession updates the session's last-activity timestamp.
func (s *SQLiteStore) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	query := `UPDATE sessions SET last_active_at = ? WHERE session_id = ?`
	result, err := s.db.ExecContext(ctx, query, at.Unix(), sessionID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// CloseSession transitions a session from active to closed.
func (s *SQLiteStore) CloseSession(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET status = ? WHERE session_id = ?`
	result, err := s.db.ExecContext(ctx, query, string(domain.SessionClosed), sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// IdleSessions returns active sessions with no activity for at least ttl.
func (s *SQLiteStore) IdleSessions(ctx context.Context, ttl time.Duration) ([]*domain.Session, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `
		SELECT session_id, job_id, status, created_at, last_active_at
		FROM sessions WHERE status = 'active' AND last_active_at <= ?`

	rows, err := s.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("query idle sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close idle sessions rows", "error", closeErr)
		}
	}()

	var sessions []*domain.Session
	for rows.Next() {
		var session domain.Session
		var status string
		var createdAt, lastActiveAt int64

		if err := rows.Scan(&session.ID, &session.JobID, &status, &createdAt, &lastActiveAt); err != nil {
			return nil, fmt.Errorf("scan idle session row: %w", err)
		}

		session.Status = domain.SessionStatus(status)
		session.CreatedAt = time.Unix(createdAt, 0)
		session.LastActiveAt = time.Unix(lastActiveAt, 0)
		sessions = append(sessions, &session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate idle sessions: %w", err)
	}

	return sessions, nil
}

// AppendMessage appends a message to its session's transcript.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	if _, err := s.GetSession(ctx, msg.SessionID); err != nil {
		return err
	}

	query := `
	INSERT INTO messages (message_id, session_id, role, text, audio_storage_path, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.SessionID, string(msg.Role), msg.Text,
		nullable(msg.AudioStoragePath), msg.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessages returns the session transcript in append order.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	query := `
		SELECT message_id, session_id, role, text, audio_storage_path, created_at
		FROM messages WHERE session_id = ? ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var msgs []*domain.Message
	for rows.Next() {
		var msg domain.Message
		var role string
		var audioPath sql.NullString
		var createdAt int64

		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Text, &audioPath, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		msg.Role = domain.Role(role)
		msg.AudioStoragePath = audioPath.String
		msg.CreatedAt = time.Unix(createdAt, 0)
		msgs = append(msgs, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return msgs, nil
}

// CreateRecording inserts the record for an issued upload target.
func (s *SQLiteStore) CreateRecording(ctx context.Context, rec *domain.Recording) error {
	query := `
	INSERT INTO recordings (recording_id, session_id, storage_path, content_type, filename, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.SessionID, rec.StoragePath, rec.ContentType, rec.Filename,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
