package handler

import "net/http"

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NotFound answers unknown routes with a JSON 404.
func (h *HealthHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, "Not found", http.StatusNotFound)
}
