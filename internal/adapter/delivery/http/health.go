package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
)

const pingTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type healthHandler struct {
	db  pinger
	now func() time.Time
}

func newHealthHandler(db pinger) *healthHandler {
	return &healthHandler{
		db:  db,
		now: time.Now,
	}
}

// check reports whether the service can reach its database.
func (h *healthHandler) check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	resp := healthResponse{
		Status:    statusOK,
		Database:  "up",
		Timestamp: h.now().UTC(),
	}

	if err := h.db.Ping(ctx); err != nil {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		resp.Status = statusDegraded
		resp.Database = "down"

		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, resp)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}
