package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/markdave123-py/Contexta/internal/models"
)

// DatabaseClient implements DbClient over Postgres or SQLite. Queries are
// written with '?' placeholders and rebound for the driver.
type DatabaseClient struct {
	db *sqlx.DB
}

// NewWithDB wraps an already opened and bootstrapped database.
func NewWithDB(db *sqlx.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	q := c.db.Rebind(`
		INSERT INTO users (id, email, password_hash, display_name, security_question, security_answer_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.Email, user.PasswordHash, user.DisplayName,
		user.SecurityQuestion, user.SecurityAnswerHash, user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

const userColumns = `id, email, password_hash, display_name, security_question, security_answer_hash, created_at`

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := c.db.GetContext(ctx, &u, c.db.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *DatabaseClient) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := c.db.GetContext(ctx, &u, c.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *DatabaseClient) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	res, err := c.db.ExecContext(ctx, c.db.Rebind(`UPDATE users SET password_hash = ? WHERE id = ?`), passwordHash, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Documents

// documentRow carries the JSON column that models.Document exposes decoded.
type documentRow struct {
	models.Document
	StructuredJSON string `db:"structured_json"`
}

// CreateDocument inserts the document and its pages in a single transaction,
// so a failure part way leaves no document behind.
func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document, pages []string) error {
	if doc == nil {
		return errors.New("nil document")
	}
	structured, err := json.Marshal(doc.Structured)
	if err != nil {
		return fmt.Errorf("encode structured data: %w", err)
	}
	if doc.Structured == nil {
		structured = []byte("{}")
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.PageCount = len(pages)

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO documents (id, owner_id, filename, full_text, structured_json, page_count, storage_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), doc.ID, nullable(doc.OwnerID), doc.FileName, doc.FullText, string(structured), doc.PageCount, doc.StorageKey, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO pages (doc_id, page_num, content) VALUES (?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare pages: %w", err)
	}
	defer stmt.Close()

	for i, content := range pages {
		if _, err := stmt.ExecContext(ctx, doc.ID, i, content); err != nil {
			return fmt.Errorf("insert page %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (c *DatabaseClient) GetDocument(ctx context.Context, docID, ownerID string) (*models.Document, error) {
	var row documentRow
	err := c.db.GetContext(ctx, &row, c.db.Rebind(`
		SELECT id, COALESCE(owner_id, '') AS owner_id, filename, full_text, structured_json, page_count, storage_key, created_at
		FROM documents
		WHERE id = ? AND owner_id = ?
	`), docID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc := row.Document
	doc.Structured = map[string]any{}
	if row.StructuredJSON != "" {
		if err := json.Unmarshal([]byte(row.StructuredJSON), &doc.Structured); err != nil {
			return nil, fmt.Errorf("decode structured data for %s: %w", docID, err)
		}
	}

	if err := c.db.SelectContext(ctx, &doc.Pages, c.db.Rebind(`
		SELECT content FROM pages WHERE doc_id = ? ORDER BY page_num ASC
	`), docID); err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	return &doc, nil
}

func (c *DatabaseClient) ListDocumentsByOwner(ctx context.Context, ownerID string) ([]models.DocumentSummary, error) {
	out := []models.DocumentSummary{}
	err := c.db.SelectContext(ctx, &out, c.db.Rebind(`
		SELECT id, filename, page_count, created_at
		FROM documents
		WHERE owner_id = ?
		ORDER BY created_at DESC, id
	`), ownerID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, docID, ownerID string) (string, error) {
	var key string
	err := c.db.GetContext(ctx, &key, c.db.Rebind(`
		DELETE FROM documents WHERE id = ? AND owner_id = ? RETURNING storage_key
	`), docID, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

// Chat history

// InsertChatMessage appends one message. The insert only happens when the
// document exists and belongs to ownerID.
func (c *DatabaseClient) InsertChatMessage(ctx context.Context, ownerID string, msg *models.ChatMessage) error {
	if msg == nil {
		return errors.New("nil chat message")
	}
	res, err := c.db.ExecContext(ctx, c.db.Rebind(`
		INSERT INTO chat_history (doc_id, role, message)
		SELECT id, ?, ? FROM documents WHERE id = ? AND owner_id = ?
	`), msg.Role, msg.Message, msg.DocID, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *DatabaseClient) ListChatMessages(ctx context.Context, docID, ownerID string) ([]models.ChatMessage, error) {
	out := []models.ChatMessage{}
	err := c.db.SelectContext(ctx, &out, c.db.Rebind(`
		SELECT ch.id, ch.doc_id, ch.role, ch.message, ch.created_at
		FROM chat_history ch
		JOIN documents d ON d.id = ch.doc_id
		WHERE ch.doc_id = ? AND d.owner_id = ?
		ORDER BY ch.id ASC
	`), docID, ownerID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

var _ DbClient = (*DatabaseClient)(nil)
