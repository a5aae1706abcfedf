package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/errors"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

// errorEnvelope is the stable error response shape.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	writeJSON(w, statusFor(code), errorEnvelope{
		Error: errorBody{
			Code:    string(code),
			Message: errors.UserMessage(err),
		},
	})
}

// statusFor maps machine error codes onto HTTP statuses. Unknown codes
// are treated as internal.
func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeNotFound,
		errors.ErrCodeUnknownPackage,
		errors.ErrCodeUnknownRelease,
		errors.ErrCodeSnapshotNotFound:
		return http.StatusNotFound
	case errors.ErrCodeGraphCycle:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeInvalidInput,
		errors.ErrCodeInvalidPackage,
		errors.ErrCodeInvalidDescriptor,
		errors.ErrCodeInvalidManifest,
		errors.ErrCodeInvalidTransition,
		errors.ErrCodeInvalidCase,
		errors.ErrCodeDuplicateRelease,
		errors.ErrCodeDuplicatePackage,
		errors.ErrCodeOutOfRange,
		errors.ErrCodeUnsupported:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseRef parses the "package@release" form used by the batch endpoint.
func parseRef(s string) (descriptor.Ref, error) {
	i := strings.LastIndex(s, "@")
	if i <= 0 || i == len(s)-1 {
		return descriptor.Ref{}, errors.New(errors.ErrCodeInvalidInput,
			"ref %q is not in package@release form", s)
	}
	return descriptor.Ref{
		PackageID: s[:i],
		Release:   timeline.Release(s[i+1:]),
	}, nil
}

// requestLogger logs one line per request with the chi request ID.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		})
	}
}
