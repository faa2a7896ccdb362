// Package cache keeps the in-memory working set of documents: pages, the
// embedding index and the chat pairs, keyed by document id.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/markdave123-py/Contexta/internal/core"
	db "github.com/markdave123-py/Contexta/internal/core/database"
	"github.com/markdave123-py/Contexta/internal/core/retrieval"
	"github.com/markdave123-py/Contexta/internal/models"
)

// ErrNotFound is returned when the document is absent or owned by someone else.
var ErrNotFound = db.ErrNotFound

const DefaultMaxDocs = 256

// Loader is the slice of storage the cache rebuilds entries from.
type Loader interface {
	GetDocument(ctx context.Context, docID, ownerID string) (*models.Document, error)
	ListChatMessages(ctx context.Context, docID, ownerID string) ([]models.ChatMessage, error)
}

// Cache is a bounded, concurrency-safe DocumentCache.
type Cache struct {
	loader Loader
	emb    core.Embedder
	log    zerolog.Logger

	mu      sync.Mutex
	entries *lru.Cache[string, *Entry]
	gens    map[string]uint64 // per document, bumped by Invalidate

	builds singleflight.Group
}

func New(loader Loader, emb core.Embedder, maxDocs int, log zerolog.Logger) (*Cache, error) {
	if loader == nil || emb == nil {
		return nil, errors.New("cache: loader and embedder are required")
	}
	if maxDocs <= 0 {
		maxDocs = DefaultMaxDocs
	}
	entries, err := lru.New[string, *Entry](maxDocs)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Cache{
		loader:  loader,
		emb:     emb,
		log:     log.With().Str("component", "document_cache").Logger(),
		entries: entries,
		gens:    make(map[string]uint64),
	}, nil
}

// Ensure returns the resident entry for docID or loads and indexes it from
// storage. Resident entries are still checked against ownerID.
func (c *Cache) Ensure(ctx context.Context, docID, ownerID string) (*Entry, error) {
	if e, ok := c.lookup(docID); ok {
		if e.OwnerID != ownerID {
			return nil, ErrNotFound
		}
		return e, nil
	}

	// The build outlives any single caller so that waiters are not failed by
	// the first caller's cancellation.
	ch := c.builds.DoChan(docID+"|"+ownerID, func() (any, error) {
		return c.build(context.WithoutCancel(ctx), docID, ownerID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Entry), nil
	}
}

func (c *Cache) build(ctx context.Context, docID, ownerID string) (*Entry, error) {
	if e, ok := c.lookup(docID); ok && e.OwnerID == ownerID {
		return e, nil
	}

	gen := c.generation(docID)

	doc, err := c.loader.GetDocument(ctx, docID, ownerID)
	if err != nil {
		return nil, err
	}
	msgs, err := c.loader.ListChatMessages(ctx, docID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}

	start := time.Now()
	idx := retrieval.Build(ctx, c.emb, doc.Pages)
	c.log.Info().
		Str("doc_id", docID).
		Int("pages", len(doc.Pages)).
		Dur("took", time.Since(start)).
		Msg("document indexed")

	return c.store(newEntry(doc, idx, db.PairMessages(msgs)), gen), nil
}

// Put seeds the cache with a freshly uploaded document.
func (c *Cache) Put(doc *models.Document, idx *retrieval.Index) *Entry {
	return c.store(newEntry(doc, idx, nil), c.generation(doc.ID))
}

// Invalidate drops docID. Builds of docID that started before the call are
// not cached; builds of other documents are unaffected.
func (c *Cache) Invalidate(docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Remove(docID)
	c.gens[docID]++
}

// Len is the number of resident documents.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) lookup(docID string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(docID)
}

func (c *Cache) generation(docID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[docID]
}

// store makes e resident unless e.DocID was invalidated since gen. An entry
// that is already resident wins so that chat appends are not split across
// two entries.
func (c *Cache) store(e *Entry, gen uint64) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gens[e.DocID] {
		return e
	}
	if cur, ok := c.entries.Get(e.DocID); ok && cur.OwnerID == e.OwnerID {
		return cur
	}
	c.entries.Add(e.DocID, e)
	return e
}
