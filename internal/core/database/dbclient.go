package db

import (
	"context"
	"errors"

	"github.com/markdave123-py/Contexta/internal/models"
)

var (
	// ErrNotFound covers both a missing row and a row owned by someone else.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("record already exists")
)

// DbClient defines all persistence operations your services will need.
// Every document read or write takes the owner id and filters on it in the
// query itself.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error

	// CreateDocument writes the document and all of its pages atomically.
	CreateDocument(ctx context.Context, doc *models.Document, pages []string) error
	GetDocument(ctx context.Context, docID, ownerID string) (*models.Document, error)
	ListDocumentsByOwner(ctx context.Context, ownerID string) ([]models.DocumentSummary, error)
	// DeleteDocument removes the document with its pages and chat history and
	// returns the storage key of its archived file.
	DeleteDocument(ctx context.Context, docID, ownerID string) (storageKey string, err error)

	InsertChatMessage(ctx context.Context, ownerID string, msg *models.ChatMessage) error
	ListChatMessages(ctx context.Context, docID, ownerID string) ([]models.ChatMessage, error)

	Close() error
}
