package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"docflow/logger"
	"docflow/model"
)

func (s *Server) HandleSaveWorkflow(w http.ResponseWriter, r *http.Request) {
	var workflow model.Workflow
	if err := json.NewDecoder(r.Body).Decode(&workflow); err != nil {
		logger.Error("can not decode workflow", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "invalid workflow payload")
		return
	}
	defer r.Body.Close()

	if err := s.service.SaveWorkflow(workflow); err != nil {
		logger.Error("error saving workflow", zap.String("name", workflow.Name), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, map[string]any{"id": workflow.Id, "status": "saved"})
}

func (s *Server) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	workflow, err := s.service.GetWorkflow(id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, workflow)
}

func (s *Server) HandleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.service.ListWorkflows()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, workflows)
}

func (s *Server) HandleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteWorkflow(id); err != nil {
		logger.Error("error deleting workflow", zap.String("id", id), zap.Error(err))
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleEnableWorkflow(w http.ResponseWriter, r *http.Request) {
	s.setWorkflowEnabled(w, r, true)
}

func (s *Server) HandleDisableWorkflow(w http.ResponseWriter, r *http.Request) {
	s.setWorkflowEnabled(w, r, false)
}

func (s *Server) setWorkflowEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := mux.Vars(r)["id"]
	if err := s.service.SetWorkflowEnabled(id, enabled); err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondOK(w, map[string]any{"id": id, "enabled": enabled})
}

func (s *Server) HandleSaveRule(w http.ResponseWriter, r *http.Request) {
	var rule model.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		logger.Error("can not decode rule", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "invalid rule payload")
		return
	}
	defer r.Body.Close()

	if err := s.service.SaveRule(rule); err != nil {
		logger.Error("error saving rule", zap.String("name", rule.Name), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, map[string]any{"id": rule.Id, "status": "saved"})
}

func (s *Server) HandleGetRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rule, err := s.service.GetRule(id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, rule)
}

func (s *Server) HandleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.service.ListRules()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, rules)
}

func (s *Server) HandleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteRule(id); err != nil {
		logger.Error("error deleting rule", zap.String("id", id), zap.Error(err))
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleEnableRule(w http.ResponseWriter, r *http.Request) {
	s.setRuleEnabled(w, r, true)
}

func (s *Server) HandleDisableRule(w http.ResponseWriter, r *http.Request) {
	s.setRuleEnabled(w, r, false)
}

func (s *Server) setRuleEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := mux.Vars(r)["id"]
	if err := s.service.SetRuleEnabled(id, enabled); err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondOK(w, map[string]any{"id": id, "enabled": enabled})
}

func (s *Server) HandleAddJob(w http.ResponseWriter, r *http.Request) {
	var job model.ScheduledJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		logger.Error("can not decode job", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "invalid job payload")
		return
	}
	defer r.Body.Close()

	if err := s.service.AddJob(job); err != nil {
		logger.Error("error adding job", zap.String("name", job.Name), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, map[string]any{"id": job.Id, "status": "scheduled"})
}

func (s *Server) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := s.service.GetJob(id)
	if !ok {
		respondWithError(w, http.StatusNotFound, "job not found")
		return
	}
	respondWithJSON(w, http.StatusOK, job)
}

func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.service.ListJobs())
}

func (s *Server) HandleRemoveJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.RemoveJob(id); err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondOKWithoutBody(w)
}

func (s *Server) HandleEnableJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.EnableJob(id); err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondOK(w, map[string]any{"id": id, "enabled": true})
}

func (s *Server) HandleDisableJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DisableJob(id); err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	respondOK(w, map[string]any{"id": id, "enabled": false})
}
