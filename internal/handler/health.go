package handler

import (
	"net/http"

	"github.com/jmoiron/sqlx"
)

type HealthHandler struct {
	db *sqlx.DB
}

func NewHealthHandler(db *sqlx.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	err := h.db.Ping()
	if err != nil {
		renderJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
