package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	middleware "github.com/markdave123-py/Contexta/internal/api/middlewares"
	"github.com/markdave123-py/Contexta/internal/apperr"
	"github.com/markdave123-py/Contexta/internal/models"
)

const maxJSONBody = 20 << 20

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("request body is not valid JSON")
	}
	return nil
}

func currentUser(r *http.Request) (*models.User, error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return nil, apperr.Unauthorized("not authenticated", nil)
	}
	return user, nil
}
