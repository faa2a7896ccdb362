package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Contexta/internal/apperr"
	"github.com/markdave123-py/Contexta/internal/config"
	"github.com/markdave123-py/Contexta/internal/core"
	db "github.com/markdave123-py/Contexta/internal/core/database"
	objectclient "github.com/markdave123-py/Contexta/internal/core/object-client"
)

type stubModel struct {
	err error
}

func (m *stubModel) Generate(ctx context.Context, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	switch {
	case strings.Contains(prompt, "Extract structured information"):
		return `{"document_type": "lease"}`, nil
	case strings.Contains(prompt, "- helpfulness (1-5)"):
		return `{"helpfulness": 4, "completeness": 4, "relevance": 5, "reasoning": "fine"}`, nil
	case strings.Contains(prompt, "suggest exactly 5"):
		return `["a?", "b?", "c?", "d?", "e?"]`, nil
	}
	return "stub answer", nil
}

func (m *stubModel) Embed(ctx context.Context, text string) []float32 {
	return []float32{float32(len(text)), 1, 0, 0}
}

func (m *stubModel) Dimension() int { return 4 }

type textExtractor struct{}

func (textExtractor) ExtractPages(ctx context.Context, data []byte) ([]string, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, core.ErrUnreadableDocument
	}
	return strings.Split(string(data[len("%PDF-"):]), "\f"), nil
}

type testServer struct {
	t       *testing.T
	srv     *httptest.Server
	handler http.Handler
	db    *db.DatabaseClient
	model *stubModel
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		DBDriver:     config.DriverSQLite,
		SQLitePath:   ":memory:",
		JWTSecret:    "e2e-secret",
		TokenTTL:     time.Hour,
		CacheMaxDocs: 8,
		MaxUploadMB:  1,
	}
	client, err := db.NewDatabaseClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	model := &stubModel{}
	svc, err := NewServices(cfg, Deps{
		DB:        client,
		Generator: model,
		Embedder:  model,
		Extractor: textExtractor{},
		Storage:   objectclient.NoopClient{},
	}, zerolog.Nop())
	require.NoError(t, err)

	handler := NewRouter(cfg, zerolog.Nop(), svc)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, handler: handler, db: client, model: model}
}

func (s *testServer) do(method, path, token string, body any) (*http.Response, map[string]any) {
	s.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(req)
}

func (s *testServer) send(req *http.Request) (*http.Response, map[string]any) {
	s.t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw := new(bytes.Buffer)
	_, _ = raw.ReadFrom(resp.Body)
	if raw.Len() > 0 && raw.Bytes()[0] == '{' {
		require.NoError(s.t, json.Unmarshal(raw.Bytes(), &out))
	} else if raw.Len() > 0 {
		out = map[string]any{"_raw": raw.String()}
	}
	return resp, out
}

func (s *testServer) register(email string) string {
	s.t.Helper()
	resp, body := s.do(http.MethodPost, "/register", "", map[string]string{
		"email":             email,
		"password":          "secret1",
		"security_question": "City?",
		"security_answer":   "Lagos",
	})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode, body)
	return body["token"].(string)
}

func (s *testServer) upload(token, filename string, content []byte) (*http.Response, map[string]any) {
	s.t.Helper()
	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(s.t, err)
	_, err = fw.Write(content)
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/upload", buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return s.send(req)
}

func (s *testServer) listDocs(token string) []any {
	s.t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/documents", nil)
	require.NoError(s.t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	require.Equal(s.t, http.StatusOK, resp.StatusCode)

	var out []any
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestTenantIsolation(t *testing.T) {
	s := newTestServer(t)

	victim := s.register("victim@example.com")
	resp, doc := s.upload(victim, "lease.pdf", []byte("%PDF-rent is 500\fterm is one year"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, doc)
	docID := doc["doc_id"].(string)
	assert.EqualValues(t, 2, doc["page_count"])
	assert.Equal(t, "rent is 500\nterm is one year", doc["full_text"])
	assert.Equal(t, "lease", doc["structured"].(map[string]any)["document_type"])

	attacker := s.register("attacker@example.com")
	assert.Empty(t, s.listDocs(attacker))

	resp, body := s.do(http.MethodGet, "/documents/"+docID, attacker, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(apperr.KindNotFound), body["error"])

	resp, _ = s.do(http.MethodDelete, "/documents/"+docID, attacker, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/ask", attacker, map[string]any{"doc_id": docID, "question": "rent?"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/summarize", attacker, map[string]any{"doc_id": docID})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = s.do(http.MethodGet, "/documents/"+docID, victim, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, docID, body["doc_id"])
	assert.Len(t, s.listDocs(victim), 1)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	s := newTestServer(t)
	token := s.register("user@example.com")

	resp, body := s.upload(token, "notes.txt", []byte("just text"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(apperr.KindValidation), body["error"])

	resp, body = s.upload(token, "renamed.pdf", []byte("just text"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(apperr.KindValidation), body["error"])

	assert.Empty(t, s.listDocs(token))
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t)
	token := s.register("user@example.com")

	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", "big.pdf")
	require.NoError(t, err)
	_, err = fw.Write(append([]byte("%PDF-"), bytes.Repeat([]byte("a"), 2<<20)...))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(apperr.KindValidation))
	assert.Empty(t, s.listDocs(token))
}

func TestAskSummarizeSuggestFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.register("user@example.com")

	_, doc := s.upload(token, "lease.pdf", []byte("%PDF-page one\fpage two\fpage three\fpage four"))
	docID := doc["doc_id"].(string)

	resp, body := s.do(http.MethodPost, "/ask", token, map[string]any{"doc_id": docID, "question": "what is on page two?"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "stub answer", body["answer"])
	assert.Len(t, body["chat_history"], 1)
	assert.NotNil(t, body["evaluation"])
	assert.Equal(t, 2, strings.Count(body["context"].(string), "\n---\n"))

	resp, body = s.do(http.MethodPost, "/ask", token, map[string]any{"doc_id": docID, "question": "again?", "evaluate": false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["chat_history"], 2)
	assert.Nil(t, body["evaluation"])

	resp, body = s.do(http.MethodGet, "/documents/"+docID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["chat_history"], 2)
	assert.EqualValues(t, 4, body["pages"])

	resp, body = s.do(http.MethodPost, "/summarize", token, map[string]any{"doc_id": docID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stub answer", body["summary"])

	resp, body = s.do(http.MethodPost, "/suggest", token, map[string]any{"full_text": "some contract"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["questions"], 5)

	resp, _ = s.do(http.MethodDelete, "/documents/"+docID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(http.MethodPost, "/ask", token, map[string]any{"doc_id": docID, "question": "still there?"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimitIsRendered(t *testing.T) {
	s := newTestServer(t)
	token := s.register("user@example.com")
	s.model.err = apperr.RateLimited(10*time.Second, nil)

	resp, body := s.do(http.MethodPost, "/ask", token, map[string]any{"full_text": "x", "question": "q"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "10", resp.Header.Get("Retry-After"))
	assert.Equal(t, string(apperr.KindRateLimit), body["error"])
	assert.EqualValues(t, 10, body["retry_after"])
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.register("carol@example.com")

	resp, body := s.do(http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "carol@example.com", body["email"])
	assert.NotContains(t, body, "password_hash")

	resp, body = s.do(http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, string(apperr.KindUnauthorized), body["error"])

	resp, _ = s.do(http.MethodGet, "/me", token+"x", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/register", "", map[string]string{
		"email": "carol@example.com", "password": "secret1", "security_question": "q", "security_answer": "a",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/login", "", map[string]string{"email": "carol@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(http.MethodPost, "/auth/question", "", map[string]string{"email": "carol@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "City?", body["security_question"])

	resp, _ = s.do(http.MethodPost, "/auth/question", "", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/auth/reset-password", "", map[string]string{
		"email": "carol@example.com", "security_answer": "Abuja", "new_password": "another1",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/auth/reset-password", "", map[string]string{
		"email": "carol@example.com", "security_answer": "lagos", "new_password": "another1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(http.MethodPost, "/login", "", map[string]string{"email": "carol@example.com", "password": "another1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	resp, body = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
