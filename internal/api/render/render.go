// Package render writes JSON responses and maps apperr kinds to HTTP status
// codes.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/Contexta/internal/apperr"
)

type errorBody struct {
	Error      apperr.Kind `json:"error"`
	Detail     string      `json:"detail"`
	RetryAfter int         `json:"retry_after,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error renders err as {"error", "detail", "retry_after"} and logs it on the
// request logger. Wrapped causes are logged, never rendered.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)
	status := Status(ae.Kind)

	log := zerolog.Ctx(r.Context())
	switch {
	case status >= http.StatusInternalServerError:
		log.Error().Err(err).Str("kind", string(ae.Kind)).Msg("request failed")
	case ae.Kind == apperr.KindUnauthorized:
		log.Info().Err(ae.Err).Msg("unauthenticated request")
	default:
		log.Debug().Err(err).Str("kind", string(ae.Kind)).Msg("request rejected")
	}

	body := errorBody{Error: ae.Kind, Detail: ae.Detail}
	if ae.Kind == apperr.KindRateLimit && ae.RetryAfter > 0 {
		secs := int(math.Ceil(ae.RetryAfter.Seconds()))
		body.RetryAfter = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	JSON(w, status, body)
}

// Status maps an error kind to its HTTP status.
func Status(k apperr.Kind) int {
	switch k {
	case apperr.KindRateLimit:
		return http.StatusTooManyRequests
	case apperr.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func classify(err error) *apperr.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			return &apperr.Error{
				Kind:   apperr.KindServiceUnavailable,
				Detail: "The request timed out. Please try again.",
				Err:    err,
			}
		}
	}
	return apperr.As(err)
}
