package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/Contexta/internal/apperr"
	"github.com/markdave123-py/Contexta/internal/core"
	"github.com/markdave123-py/Contexta/internal/core/cache"
	db "github.com/markdave123-py/Contexta/internal/core/database"
	"github.com/markdave123-py/Contexta/internal/core/structured"
	"github.com/markdave123-py/Contexta/internal/models"
)

const (
	retrievalTopK      = 3
	contextSeparator   = "\n---\n"
	evalContextCap     = 1200
	summarizeTextCap   = 100_000
	suggestTextCap     = 50_000
	suggestedQuestions = 5
)

// AnswerService answers questions over a document, either a cached one
// resolved by id and owner or text supplied by the caller.
type AnswerService struct {
	db      db.DbClient
	cache   *cache.Cache
	gen     core.Generator
	emb     core.Embedder
	prompts *Prompts
	log     zerolog.Logger
}

func NewAnswerService(dbclient db.DbClient, docs *cache.Cache, gen core.Generator, emb core.Embedder, prompts *Prompts, log zerolog.Logger) *AnswerService {
	return &AnswerService{
		db:      dbclient,
		cache:   docs,
		gen:     gen,
		emb:     emb,
		prompts: prompts,
		log:     log.With().Str("component", "answer_service").Logger(),
	}
}

type AskInput struct {
	DocID    string `json:"doc_id"`
	FullText string `json:"full_text"`
	Question string `json:"question"`
	Evaluate *bool  `json:"evaluate"`
}

type AskResult struct {
	Answer      string             `json:"answer"`
	ChatHistory []models.QAPair    `json:"chat_history"`
	Evaluation  *models.Evaluation `json:"evaluation,omitempty"`
	Context     string             `json:"context,omitempty"`
}

// DocumentRef names the text an operation works on: DocID for a stored
// document, or FullText supplied directly.
type DocumentRef struct {
	DocID    string `json:"doc_id"`
	FullText string `json:"full_text"`
}

// Ask is stateful when DocID is set: retrieval over the cached index, chat
// history in the prompt and the new pair persisted. Otherwise the supplied
// text is the whole context and no history is kept.
func (s *AnswerService) Ask(ctx context.Context, ownerID string, in AskInput) (*AskResult, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, apperr.Validation("question is required")
	}
	evaluate := in.Evaluate == nil || *in.Evaluate

	var (
		res      *AskResult
		fullText string
		err      error
	)
	switch {
	case in.DocID != "":
		res, fullText, err = s.askStateful(ctx, ownerID, in.DocID, question)
	case strings.TrimSpace(in.FullText) != "":
		fullText = in.FullText
		res, err = s.askStateless(ctx, fullText, question)
	default:
		return nil, apperr.Validation("doc_id or full_text is required")
	}
	if err != nil {
		return nil, err
	}

	if evaluate {
		res.Evaluation = s.Evaluate(ctx, question, fullText, res.Answer)
	}
	return res, nil
}

func (s *AnswerService) askStateful(ctx context.Context, ownerID, docID, question string) (*AskResult, string, error) {
	entry, err := s.ensure(ctx, docID, ownerID)
	if err != nil {
		return nil, "", err
	}

	hits := entry.Index.Query(ctx, s.emb, question, retrievalTopK)
	passages := make([]string, 0, len(hits))
	for _, i := range hits {
		passages = append(passages, entry.Pages[i])
	}
	contextText := strings.Join(passages, contextSeparator)

	answer, err := s.answer(ctx, entry.History(), contextText, question)
	if err != nil {
		return nil, "", err
	}

	history, err := entry.AppendPair(context.WithoutCancel(ctx), question, answer, func(ctx context.Context) error {
		if err := s.db.InsertChatMessage(ctx, ownerID, &models.ChatMessage{DocID: docID, Role: models.RoleUser, Message: question}); err != nil {
			return err
		}
		return s.db.InsertChatMessage(ctx, ownerID, &models.ChatMessage{DocID: docID, Role: models.RoleAssistant, Message: answer})
	})
	if err != nil {
		s.log.Error().Err(err).Str("doc_id", docID).Msg("persist chat pair")
	}

	return &AskResult{Answer: answer, ChatHistory: history, Context: contextText}, entry.FullText, nil
}

func (s *AnswerService) askStateless(ctx context.Context, fullText, question string) (*AskResult, error) {
	answer, err := s.answer(ctx, nil, fullText, question)
	if err != nil {
		return nil, err
	}
	return &AskResult{
		Answer:      answer,
		ChatHistory: []models.QAPair{{User: question, Assistant: answer}},
		Context:     fullText,
	}, nil
}

func (s *AnswerService) answer(ctx context.Context, history []models.QAPair, contextText, question string) (string, error) {
	prompt, err := s.prompts.render(promptAnswer, struct {
		History, Context, Question string
	}{transcript(history), contextText, question})
	if err != nil {
		return "", apperr.Internal(err)
	}
	return s.gen.Generate(ctx, prompt)
}

// Evaluate scores an answer. It never fails: generation or parse errors are
// reported in the returned Evaluation with nil scores.
func (s *AnswerService) Evaluate(ctx context.Context, question, fullText, answer string) *models.Evaluation {
	prompt, err := s.prompts.render(promptEvaluate, struct {
		Question, Context, Answer string
	}{question, structured.Truncate(fullText, evalContextCap), answer})
	if err == nil {
		var raw string
		raw, err = s.gen.Generate(ctx, prompt)
		if err == nil {
			res := structured.Evaluation(raw)
			if res.Stage == structured.StageFallback {
				s.log.Warn().Msg("evaluation returned invalid JSON")
			}
			return &res.Value
		}
	}

	s.log.Warn().Err(err).Msg("evaluation failed")
	return &models.Evaluation{Reasoning: "evaluation failed: " + apperr.As(err).Detail}
}

// Summarize returns a structured summary of the referenced document.
func (s *AnswerService) Summarize(ctx context.Context, ownerID string, ref DocumentRef) (string, error) {
	text, err := s.resolveText(ctx, ownerID, ref)
	if err != nil {
		return "", err
	}
	prompt, err := s.prompts.render(promptSummarize, struct{ Text string }{structured.Truncate(text, summarizeTextCap)})
	if err != nil {
		return "", apperr.Internal(err)
	}
	return s.gen.Generate(ctx, prompt)
}

// Suggest returns up to five questions worth asking about the document,
// falling back to a fixed list when the model output is unusable.
func (s *AnswerService) Suggest(ctx context.Context, ownerID string, ref DocumentRef) ([]string, error) {
	text, err := s.resolveText(ctx, ownerID, ref)
	if err != nil {
		return nil, err
	}
	prompt, err := s.prompts.render(promptSuggest, struct{ Text string }{structured.Truncate(text, suggestTextCap)})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	res := structured.Questions(raw, suggestedQuestions)
	if res.Stage == structured.StageFallback {
		s.log.Warn().Msg("suggestions returned invalid JSON, using defaults")
	}
	return res.Value, nil
}

// resolveText prefers caller-supplied text and otherwise loads the document.
func (s *AnswerService) resolveText(ctx context.Context, ownerID string, ref DocumentRef) (string, error) {
	if strings.TrimSpace(ref.FullText) != "" {
		return ref.FullText, nil
	}
	if ref.DocID == "" {
		return "", apperr.Validation("doc_id or full_text is required")
	}
	entry, err := s.ensure(ctx, ref.DocID, ownerID)
	if err != nil {
		return "", err
	}
	return entry.FullText, nil
}

func (s *AnswerService) ensure(ctx context.Context, docID, ownerID string) (*cache.Entry, error) {
	entry, err := s.cache.Ensure(ctx, docID, ownerID)
	if err == nil {
		return entry, nil
	}
	if errors.Is(err, cache.ErrNotFound) {
		return nil, apperr.NotFound("document not found")
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, apperr.Internal(err)
}

func transcript(history []models.QAPair) string {
	lines := make([]string, 0, len(history))
	for _, p := range history {
		lines = append(lines, "User: "+p.User+"\nAssistant: "+p.Assistant)
	}
	return strings.Join(lines, "\n")
}
