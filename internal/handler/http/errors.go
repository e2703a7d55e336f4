package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vipogroup/vipo-orders/internal/domain"
	"github.com/vipogroup/vipo-orders/pkg/httputil"
)

// writeError maps lifecycle domain errors onto the response envelope before
// falling back to the shared error writer. A blocked transition is a client
// conflict with the current state; an invariant violation is a server bug and
// reported as such.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	var blocked *domain.TransitionBlockedError
	if errors.As(err, &blocked) {
		httputil.WriteJSON(w, http.StatusConflict, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    blocked.Code(),
				Message: blocked.Error(),
			},
		})
		return
	}

	var invariant *domain.InvariantError
	if errors.As(err, &invariant) {
		logger.ErrorContext(r.Context(), "order status invariant violated",
			slog.String("error", invariant.Error()),
			slog.String("path", r.URL.Path),
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    invariant.Code(),
				Message: "order state is internally inconsistent",
			},
		})
		return
	}

	httputil.WriteError(w, r, err, logger)
}
