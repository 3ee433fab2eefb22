package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrConflict marks requests rejected because they were already processed.
var ErrConflict = errors.New("conflict")

// RespondError maps domain errors to HTTP responses. Unexpected failures are logged
// with their cause and answered with a generic message.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict), errors.Is(err, shared.ErrIdempotencyConflict):
		Error(w, http.StatusConflict, "request already processed")
	default:
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed", slog.Any("error", err), slog.Bool("store", errors.Is(err, shared.ErrExternalStore)))
		Error(w, http.StatusInternalServerError, shared.UserSafeMessage(err))
	}
}
