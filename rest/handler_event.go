package rest

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"docflow/logger"
	"docflow/model"
)

func (s *Server) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		logger.Error("can not decode event", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	defer r.Body.Close()

	if err := s.service.Submit(ev); err != nil {
		logger.Error("error accepting event", zap.String("kind", string(ev.Kind)), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, map[string]any{"accepted": true})
}

// HandleWebhook turns an arbitrary JSON POST into a webhook event. The
// idempotency key comes from the X-Idempotency-Key header when present.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logger.Error("can not decode webhook body", zap.String("path", path), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}
	defer r.Body.Close()

	key := r.Header.Get("X-Idempotency-Key")
	if key == "" {
		key = uuid.NewString()
	}
	ev := model.NewWebhookEvent(path, body, key)

	if err := s.service.Submit(ev); err != nil {
		logger.Error("error accepting webhook", zap.String("path", path), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, map[string]any{"accepted": true, "idempotencyKey": key})
}
