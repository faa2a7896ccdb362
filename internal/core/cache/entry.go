package cache

import (
	"context"
	"sync"
	"time"

	"github.com/markdave123-py/Contexta/internal/core/retrieval"
	"github.com/markdave123-py/Contexta/internal/models"
)

// Entry is a resident document. Everything except the chat pairs is
// immutable after construction.
type Entry struct {
	DocID      string
	OwnerID    string
	FileName   string
	FullText   string
	Structured map[string]any
	Pages      []string
	Index      *retrieval.Index
	CreatedAt  time.Time

	mu    sync.Mutex
	pairs []models.QAPair
}

func newEntry(doc *models.Document, idx *retrieval.Index, pairs []models.QAPair) *Entry {
	return &Entry{
		DocID:      doc.ID,
		OwnerID:    doc.OwnerID,
		FileName:   doc.FileName,
		FullText:   doc.FullText,
		Structured: doc.Structured,
		Pages:      doc.Pages,
		Index:      idx,
		CreatedAt:  doc.CreatedAt,
		pairs:      pairs,
	}
}

// History returns a copy of the chat pairs.
func (e *Entry) History() []models.QAPair {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// AppendPair records a question and its answer, then runs persist while
// still holding the entry lock so concurrent pairs are stored in order. The
// pair stays in memory even if persist fails.
func (e *Entry) AppendPair(ctx context.Context, question, answer string, persist func(ctx context.Context) error) ([]models.QAPair, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pairs = append(e.pairs, models.QAPair{User: question, Assistant: answer})

	var err error
	if persist != nil {
		err = persist(ctx)
	}
	return e.snapshot(), err
}

func (e *Entry) snapshot() []models.QAPair {
	out := make([]models.QAPair, len(e.pairs))
	copy(out, e.pairs)
	return out
}
