package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/markdave123-py/Contexta/internal/core"
)

var (
	rateLimitMarkers   = []string{"429", "too many requests", "resource_exhausted", "resourceexhausted", "resource exhausted", "rate limit", "ratelimit", "quota"}
	unavailableMarkers = []string{"404", "not_found", "not found", "invalid_argument", "invalid argument"}
)

// classify wraps err in a *core.CallError. Structured status codes win; the
// message markers only apply to errors that carry no code at all.
func classify(err error) error {
	if err == nil {
		return nil
	}
	return &core.CallError{Kind: classifyError(err), Err: err}
}

func classifyError(err error) core.CallErrorKind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.CallErrorOther
	}

	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if st := ae.GRPCStatus(); st != nil {
			return kindForCode(st.Code())
		}
		if c := ae.HTTPCode(); c > 0 {
			return kindForHTTP(c)
		}
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return kindForHTTP(ge.Code)
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return kindForCode(st.Code())
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, rateLimitMarkers):
		return core.CallErrorRateLimited
	case containsAny(msg, unavailableMarkers):
		return core.CallErrorModelUnavailable
	}
	return core.CallErrorOther
}

func kindForCode(c codes.Code) core.CallErrorKind {
	switch c {
	case codes.ResourceExhausted:
		return core.CallErrorRateLimited
	case codes.NotFound, codes.InvalidArgument:
		return core.CallErrorModelUnavailable
	}
	return core.CallErrorOther
}

func kindForHTTP(code int) core.CallErrorKind {
	switch code {
	case http.StatusTooManyRequests:
		return core.CallErrorRateLimited
	case http.StatusNotFound, http.StatusBadRequest:
		return core.CallErrorModelUnavailable
	}
	return core.CallErrorOther
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
