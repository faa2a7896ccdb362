package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Contexta/internal/apperr"
)

func TestUpload_PersistsAndSeedsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "owner@example.com")

	doc, err := f.docs.Upload(ctx, owner, "lease.pdf", pdfBytes("page one", "page two"))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount)
	assert.Equal(t, "page one\npage two", doc.FullText)
	assert.Equal(t, "Lease", doc.Structured["title"])
	assert.Empty(t, doc.StorageKey)
	assert.Equal(t, 1, f.cache.Len())

	list, err := f.docs.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, doc.ID, list[0].ID)

	view, err := f.docs.Get(ctx, doc.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "lease.pdf", view.FileName)
	assert.Equal(t, 2, view.Pages)
	assert.Empty(t, view.ChatHistory)
}

func TestUpload_RejectsNonPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "owner@example.com")

	_, err := f.docs.Upload(ctx, owner, "notes.txt", []byte("hello"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.docs.Upload(ctx, owner, "fake.pdf", []byte("not really a pdf"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.docs.Upload(ctx, owner, "empty.pdf", nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	list, err := f.docs.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.gen.prompts)
	assert.Equal(t, 0, f.cache.Len())
}

func TestUpload_MetadataFailureIsAbsorbed(t *testing.T) {
	f := newFixture(t)
	f.gen.meta = "I cannot produce JSON today"
	owner := f.register(t, "owner@example.com")

	doc, err := f.docs.Upload(context.Background(), owner, "a.pdf", pdfBytes("text"))
	require.NoError(t, err)
	assert.Equal(t, "invalid JSON from model", doc.Structured["error"])
	assert.Equal(t, "I cannot produce JSON today", doc.Structured["raw_output"])

	f.gen.err = errors.New("boom")
	doc, err = f.docs.Upload(context.Background(), owner, "b.pdf", pdfBytes("text"))
	require.NoError(t, err)
	assert.Equal(t, "invalid JSON from model", doc.Structured["error"])
}

func TestDelete_IsOwnerScopedAndInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.register(t, "owner@example.com")
	other := f.register(t, "other@example.com")

	doc, err := f.docs.Upload(ctx, owner, "lease.pdf", pdfBytes("rent is due monthly"))
	require.NoError(t, err)

	err = f.docs.Delete(ctx, doc.ID, other)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = f.docs.Get(ctx, doc.ID, other)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.docs.Get(ctx, doc.ID, owner)
	require.NoError(t, err)

	require.NoError(t, f.docs.Delete(ctx, doc.ID, owner))
	assert.Equal(t, 0, f.cache.Len())

	_, err = f.docs.Get(ctx, doc.ID, owner)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = f.answers.Ask(ctx, owner, AskInput{DocID: doc.ID, Question: "rent?"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
