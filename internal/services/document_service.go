package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Contexta/internal/apperr"
	"github.com/markdave123-py/Contexta/internal/core"
	"github.com/markdave123-py/Contexta/internal/core/cache"
	db "github.com/markdave123-py/Contexta/internal/core/database"
	objectclient "github.com/markdave123-py/Contexta/internal/core/object-client"
	"github.com/markdave123-py/Contexta/internal/core/retrieval"
	"github.com/markdave123-py/Contexta/internal/core/structured"
	"github.com/markdave123-py/Contexta/internal/models"
)

// metadataTextCap bounds the text sent for metadata extraction.
const metadataTextCap = 100_000

type DocumentService struct {
	db        db.DbClient
	cache     *cache.Cache
	gen       core.Generator
	emb       core.Embedder
	extractor core.PageExtractor
	storage   core.ObjectClient
	prompts   *Prompts
	log       zerolog.Logger
}

func NewDocumentService(
	dbclient db.DbClient,
	docs *cache.Cache,
	gen core.Generator,
	emb core.Embedder,
	extractor core.PageExtractor,
	storage core.ObjectClient,
	prompts *Prompts,
	log zerolog.Logger,
) *DocumentService {
	if storage == nil {
		storage = objectclient.NoopClient{}
	}
	return &DocumentService{
		db:        dbclient,
		cache:     docs,
		gen:       gen,
		emb:       emb,
		extractor: extractor,
		storage:   storage,
		prompts:   prompts,
		log:       log.With().Str("component", "document_service").Logger(),
	}
}

// DocumentView is a document with its chat history.
type DocumentView struct {
	DocID       string          `json:"doc_id"`
	FileName    string          `json:"filename"`
	Structured  map[string]any  `json:"structured"`
	Pages       int             `json:"pages"`
	ChatHistory []models.QAPair `json:"chat_history"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Upload extracts, indexes and persists a PDF for ownerID. Nothing is
// persisted unless every step succeeds.
func (s *DocumentService) Upload(ctx context.Context, ownerID, filename string, data []byte) (*models.Document, error) {
	filename = path.Base(strings.TrimSpace(filename))
	if !strings.EqualFold(path.Ext(filename), ".pdf") {
		return nil, apperr.Validation("only PDF files are supported")
	}
	if len(data) == 0 {
		return nil, apperr.Validation("uploaded file is empty")
	}

	pages, err := s.extractor.ExtractPages(ctx, data)
	if err != nil {
		if errors.Is(err, core.ErrUnreadableDocument) {
			s.log.Warn().Err(err).Str("filename", filename).Msg("unreadable upload")
			return nil, apperr.Validation("the file could not be read as a PDF")
		}
		return nil, apperr.Internal(fmt.Errorf("extract pages: %w", err))
	}
	fullText := strings.Join(pages, "\n")

	var (
		idx  *retrieval.Index
		meta map[string]any
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		idx = retrieval.Build(gctx, s.emb, pages)
		return gctx.Err()
	})
	g.Go(func() error {
		meta = s.extractMetadata(gctx, fullText)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		FileName:   filename,
		FullText:   fullText,
		Structured: meta,
		Pages:      pages,
		CreatedAt:  time.Now().UTC(),
	}
	doc.StorageKey = s.archive(ctx, doc, data)

	if err := s.db.CreateDocument(ctx, doc, pages); err != nil {
		if doc.StorageKey != "" {
			if derr := s.storage.DeleteFile(context.WithoutCancel(ctx), doc.StorageKey); derr != nil {
				s.log.Warn().Err(derr).Str("key", doc.StorageKey).Msg("remove orphaned archive")
			}
		}
		return nil, apperr.Internal(fmt.Errorf("persist document: %w", err))
	}

	s.cache.Put(doc, idx)
	s.log.Info().
		Str("doc_id", doc.ID).
		Str("owner_id", ownerID).
		Int("pages", len(pages)).
		Msg("document uploaded")
	return doc, nil
}

// extractMetadata never fails the upload; errors become the fallback envelope.
func (s *DocumentService) extractMetadata(ctx context.Context, fullText string) map[string]any {
	prompt, err := s.prompts.render(promptMetadata, struct{ Text string }{structured.Truncate(fullText, metadataTextCap)})
	if err != nil {
		s.log.Error().Err(err).Msg("metadata prompt")
		return structured.Metadata("").Value
	}
	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.log.Warn().Err(err).Msg("metadata extraction failed")
		return structured.Metadata(raw).Value
	}
	res := structured.Metadata(raw)
	if res.Stage == structured.StageFallback {
		s.log.Warn().Msg("metadata extraction returned invalid JSON")
	}
	return res.Value
}

// archive stores the original bytes and returns the object key, or "" when
// archiving is disabled or failed.
func (s *DocumentService) archive(ctx context.Context, doc *models.Document, data []byte) string {
	key := objectclient.ObjectKey(doc.OwnerID, doc.ID, doc.FileName)
	url, err := s.storage.UploadFile(ctx, key, bytes.NewReader(data), "application/pdf")
	if err != nil {
		s.log.Warn().Err(err).Str("doc_id", doc.ID).Msg("archive upload failed")
		return ""
	}
	if url == "" {
		return ""
	}
	return key
}

func (s *DocumentService) List(ctx context.Context, ownerID string) ([]models.DocumentSummary, error) {
	docs, err := s.db.ListDocumentsByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return docs, nil
}

func (s *DocumentService) Get(ctx context.Context, docID, ownerID string) (*DocumentView, error) {
	doc, err := s.db.GetDocument(ctx, docID, ownerID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	msgs, err := s.db.ListChatMessages(ctx, docID, ownerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &DocumentView{
		DocID:       doc.ID,
		FileName:    doc.FileName,
		Structured:  doc.Structured,
		Pages:       doc.PageCount,
		ChatHistory: db.PairMessages(msgs),
		CreatedAt:   doc.CreatedAt,
	}, nil
}

// Delete removes the document, its pages and chat history, evicts it from
// the cache and drops its archived file.
func (s *DocumentService) Delete(ctx context.Context, docID, ownerID string) error {
	key, err := s.db.DeleteDocument(ctx, docID, ownerID)
	if err != nil {
		return notFoundOr(err)
	}
	s.cache.Invalidate(docID)

	if key != "" {
		if err := s.storage.DeleteFile(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("doc_id", docID).Str("key", key).Msg("archive delete failed")
		}
	}
	s.log.Info().Str("doc_id", docID).Str("owner_id", ownerID).Msg("document deleted")
	return nil
}

func notFoundOr(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.NotFound("document not found")
	}
	if ae := new(apperr.Error); errors.As(err, &ae) {
		return ae
	}
	return apperr.Internal(err)
}
