package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Contexta/internal/apperr"
	db "github.com/markdave123-py/Contexta/internal/core/database"
	"github.com/markdave123-py/Contexta/internal/models"
)

type userMap map[string]*models.User

func (m userMap) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return u, nil
}

var testUsers = userMap{"u1": {ID: "u1", Email: "a@example.com"}}

func TestIssueValidate_RoundTrip(t *testing.T) {
	g, err := NewGuard("s3cret", 0, testUsers)
	require.NoError(t, err)

	tok, err := g.Issue("u1", "a@example.com")
	require.NoError(t, err)

	u, err := g.Validate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	u, err = g.ValidateHeader(context.Background(), "Bearer "+tok)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
}

func TestValidate_Expired(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g, err := NewGuard("s3cret", 72*time.Hour, testUsers, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	tok, err := g.Issue("u1", "a@example.com")
	require.NoError(t, err)

	now = now.Add(71 * time.Hour)
	_, err = g.Validate(context.Background(), tok)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = g.Validate(context.Background(), tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestValidate_TamperedSignature(t *testing.T) {
	g, err := NewGuard("s3cret", 0, testUsers)
	require.NoError(t, err)
	tok, err := g.Issue("u1", "a@example.com")
	require.NoError(t, err)

	other, err := NewGuard("different", 0, testUsers)
	require.NoError(t, err)
	_, err = other.Validate(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// splice another token's payload under this token's signature
	forged, err := g.Issue("u1", "someone-else@example.com")
	require.NoError(t, err)
	orig, fake := strings.Split(tok, "."), strings.Split(forged, ".")
	_, err = g.Validate(context.Background(), orig[0]+"."+fake[1]+"."+orig[2])
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestValidate_DistinctCauses(t *testing.T) {
	g, err := NewGuard("s3cret", 0, testUsers)
	require.NoError(t, err)

	_, err = g.ValidateHeader(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingBearer)

	_, err = g.ValidateHeader(context.Background(), "Token abc")
	assert.ErrorIs(t, err, ErrMissingBearer)

	_, err = g.Validate(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, ErrMalformedToken)

	tok, err := g.Issue("ghost", "ghost@example.com")
	require.NoError(t, err)
	_, err = g.Validate(context.Background(), tok)
	assert.ErrorIs(t, err, ErrUnknownSubject)

	for _, e := range []error{ErrMissingBearer, ErrMalformedToken, ErrUnknownSubject} {
		assert.NotContains(t, apperr.As(unauthorized(e)).Detail, e.Error())
	}
}

type failingUsers struct{ err error }

func (f failingUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return nil, f.err
}

func TestValidate_LookupFailureIsInternal(t *testing.T) {
	outage := errors.New("connection refused")
	g, err := NewGuard("s3cret", 0, failingUsers{err: outage})
	require.NoError(t, err)

	tok, err := g.Issue("u1", "a@example.com")
	require.NoError(t, err)
	_, err = g.Validate(context.Background(), tok)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.ErrorIs(t, err, outage)
	assert.NotErrorIs(t, err, ErrUnknownSubject)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("bearer   abc.def.ghi ")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	_, err = BearerToken("Bearer ")
	assert.ErrorIs(t, err, ErrMissingBearer)
}

func TestPasswordAndAnswerHashing(t *testing.T) {
	h, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, CheckPassword(h, "hunter22"))
	assert.False(t, CheckPassword(h, "hunter23"))

	ah, err := HashAnswer("  Rover ")
	require.NoError(t, err)
	assert.True(t, CheckAnswer(ah, "rover"))
	assert.False(t, CheckAnswer(ah, "fido"))
	assert.False(t, strings.Contains(ah, "rover"))
}
