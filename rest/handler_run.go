package rest

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"docflow/logger"
)

func (s *Server) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := s.service.GetRun(id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, run)
}

func (s *Server) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	workflowId := r.URL.Query().Get("workflow")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	runs, err := s.service.ListRuns(workflowId, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, runs)
}

func (s *Server) HandleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.CancelRun(id); err != nil {
		logger.Error("error cancelling run", zap.String("id", id), zap.Error(err))
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondOK(w, map[string]any{"id": id, "status": "cancel requested"})
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.service.Stats())
}
