package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/templui/imagevault/internal/model"
	"github.com/templui/imagevault/internal/service"
)

const maxConfigBody = 1 << 20

type setupHandler struct {
	setupService *service.SetupService
}

func NewSetupHandler(setupService *service.SetupService) *setupHandler {
	return &setupHandler{setupService: setupService}
}

func (h *setupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.setupService.Status())
}

func (h *setupHandler) Save(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConfigBody))
	if err != nil {
		writeJSONError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	cfg := model.NewAppConfig()
	err = json.Unmarshal(body, &cfg)
	if err != nil {
		slog.Warn("failed to parse config JSON from request body", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "Invalid JSON",
			"detail": err.Error(),
		})
		return
	}

	// A literal null decodes to a nil config
	if cfg == nil {
		writeJSONError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	err = h.setupService.Save(cfg)
	if err != nil {
		writeInternalError(w, r, "failed to save setup config", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}
