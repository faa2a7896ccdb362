package models

import (
	"time"
)

// User represents an authenticated user of the system.
type User struct {
	ID                 string    `db:"id" json:"id"`
	Email              string    `db:"email" json:"email"`
	PasswordHash       string    `db:"password_hash" json:"-"`
	DisplayName        string    `db:"display_name" json:"display_name"`
	SecurityQuestion   string    `db:"security_question" json:"-"`
	SecurityAnswerHash string    `db:"security_answer_hash" json:"-"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// Document is an uploaded PDF, its ordered page texts and the metadata the
// model extracted from it.
type Document struct {
	ID         string         `db:"id" json:"doc_id"`
	OwnerID    string         `db:"owner_id" json:"-"`
	FileName   string         `db:"filename" json:"filename"`
	FullText   string         `db:"full_text" json:"-"`
	Structured map[string]any `db:"-" json:"structured"`
	PageCount  int            `db:"page_count" json:"page_count"`
	StorageKey string         `db:"storage_key" json:"-"` // object key of the archived PDF, empty when not archived
	Pages      []string       `db:"-" json:"pages,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// DocumentSummary is the listing projection of a Document.
type DocumentSummary struct {
	ID        string    `db:"id" json:"id"`
	FileName  string    `db:"filename" json:"filename"`
	PageCount int       `db:"page_count" json:"page_count"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents an individual chat message (user or assistant).
type ChatMessage struct {
	ID        int64     `db:"id" json:"-"`
	DocID     string    `db:"doc_id" json:"doc_id"`
	Role      string    `db:"role" json:"role"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// QAPair is one question and the answer it received. Assistant is empty when
// no answer was stored.
type QAPair struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// Evaluation scores an answer on 1-5 axes. Nil scores mean the model did not
// produce a usable evaluation; Reasoning then says why.
type Evaluation struct {
	Helpfulness  *int   `json:"helpfulness"`
	Completeness *int   `json:"completeness"`
	Relevance    *int   `json:"relevance"`
	Reasoning    string `json:"reasoning"`
	RawOutput    string `json:"raw_output,omitempty"`
}
