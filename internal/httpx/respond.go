package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/pizza-club-orders/internal/apperr"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const msgUnexpected = "An unexpected error occurred, please contact support"

type message struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// errorWriter renders err as {"message": ...}. Messages of classified errors are shown
// as is; anything else is logged and hidden behind a generic 500.
func errorWriter(log *zap.Logger) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		e, ok := apperr.As(err)
		if !ok {
			log.Error("unhandled error",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, message{msgUnexpected})
			return
		}
		code := statusOf(e.Kind)
		if code == http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("path", r.URL.Path),
				zap.Error(err))
		}
		writeJSON(w, code, message{e.Message})
	}
}
