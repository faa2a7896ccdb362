package services

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Contexta/internal/auth"
	"github.com/markdave123-py/Contexta/internal/config"
	"github.com/markdave123-py/Contexta/internal/core"
	"github.com/markdave123-py/Contexta/internal/core/cache"
	db "github.com/markdave123-py/Contexta/internal/core/database"
)

// fakeGen answers by prompt kind and records every prompt.
type fakeGen struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	meta    string
	eval    string
	suggest string
	err     error
	evalErr error
}

func (g *fakeGen) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)

	switch {
	case strings.Contains(prompt, "Extract structured information"):
		if g.err != nil {
			return "", g.err
		}
		return g.meta, nil
	case strings.Contains(prompt, "- helpfulness (1-5)"):
		if g.evalErr != nil {
			return "", g.evalErr
		}
		return g.eval, nil
	case strings.Contains(prompt, "suggest exactly 5"):
		if g.err != nil {
			return "", g.err
		}
		return g.suggest, nil
	}
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func (g *fakeGen) last() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func (g *fakeGen) find(substr string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, p := range g.prompts {
		if strings.Contains(p, substr) {
			out = append(out, p)
		}
	}
	return out
}

// wordEmbedder hashes words into a small bag-of-words vector so that pages
// sharing words with a question rank first.
type wordEmbedder struct{}

const testDim = 256

func (wordEmbedder) Embed(ctx context.Context, text string) []float32 {
	vec := make([]float32, testDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,?!:;")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%testDim]++
	}
	return vec
}

func (wordEmbedder) Dimension() int { return testDim }

// pagesExtractor treats the upload as UTF-8 text with pages split on "\f".
type pagesExtractor struct{}

func (pagesExtractor) ExtractPages(ctx context.Context, data []byte) ([]string, error) {
	text := string(data)
	if !strings.HasPrefix(text, "%PDF-") {
		return nil, core.ErrUnreadableDocument
	}
	return strings.Split(strings.TrimPrefix(text, "%PDF-"), "\f"), nil
}

type fixture struct {
	db      *db.DatabaseClient
	gen     *fakeGen
	cache   *cache.Cache
	users   *UserService
	docs    *DocumentService
	answers *AnswerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	client, err := db.NewDatabaseClient(ctx, &config.Config{DBDriver: config.DriverSQLite, SQLitePath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	gen := &fakeGen{
		answer:  "The rent is 1000 per month.",
		meta:    "```json\n{\"title\": \"Lease\", \"parties\": [\"A\", \"B\"]}\n```",
		eval:    `{"helpfulness": 5, "completeness": 4, "relevance": "5", "reasoning": "ok"}`,
		suggest: `["Q1?", "Q2?", "Q3?", "Q4?", "Q5?", "Q6?"]`,
	}
	log := zerolog.Nop()
	emb := wordEmbedder{}

	docs, err := cache.New(client, emb, 16, log)
	require.NoError(t, err)
	guard, err := auth.NewGuard("test-secret", 0, client)
	require.NoError(t, err)
	prompts, err := LoadPrompts("")
	require.NoError(t, err)

	return &fixture{
		db:      client,
		gen:     gen,
		cache:   docs,
		users:   NewUserService(client, guard, log),
		docs:    NewDocumentService(client, docs, gen, emb, pagesExtractor{}, nil, prompts, log),
		answers: NewAnswerService(client, docs, gen, emb, prompts, log),
	}
}

func (f *fixture) register(t *testing.T, email string) string {
	t.Helper()
	res, err := f.users.Register(context.Background(), RegisterInput{
		Email:            email,
		Password:         "secret1",
		SecurityQuestion: "Pet?",
		SecurityAnswer:   "Rover",
	})
	require.NoError(t, err)
	return res.User.ID
}

func pdfBytes(pages ...string) []byte {
	return []byte("%PDF-" + strings.Join(pages, "\f"))
}
