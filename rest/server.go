// Package rest exposes the automation service over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"docflow/logger"
	"docflow/service"
)

type Server struct {
	http.Server
	Port    int
	service *service.AutomationService
}

func NewServer(httpPort int, automationService *service.AutomationService) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		service: automationService,
		Port:    httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/workflow", s.HandleSaveWorkflow).Methods(http.MethodPost)
	router.HandleFunc("/workflows", s.HandleListWorkflows).Methods(http.MethodGet)
	router.HandleFunc("/workflow/{id}", s.HandleGetWorkflow).Methods(http.MethodGet)
	router.HandleFunc("/workflow/{id}", s.HandleDeleteWorkflow).Methods(http.MethodDelete)
	router.HandleFunc("/workflow/{id}/enable", s.HandleEnableWorkflow).Methods(http.MethodPost)
	router.HandleFunc("/workflow/{id}/disable", s.HandleDisableWorkflow).Methods(http.MethodPost)

	router.HandleFunc("/rule", s.HandleSaveRule).Methods(http.MethodPost)
	router.HandleFunc("/rules", s.HandleListRules).Methods(http.MethodGet)
	router.HandleFunc("/rule/{id}", s.HandleGetRule).Methods(http.MethodGet)
	router.HandleFunc("/rule/{id}", s.HandleDeleteRule).Methods(http.MethodDelete)
	router.HandleFunc("/rule/{id}/enable", s.HandleEnableRule).Methods(http.MethodPost)
	router.HandleFunc("/rule/{id}/disable", s.HandleDisableRule).Methods(http.MethodPost)

	router.HandleFunc("/job", s.HandleAddJob).Methods(http.MethodPost)
	router.HandleFunc("/jobs", s.HandleListJobs).Methods(http.MethodGet)
	router.HandleFunc("/job/{id}", s.HandleGetJob).Methods(http.MethodGet)
	router.HandleFunc("/job/{id}", s.HandleRemoveJob).Methods(http.MethodDelete)
	router.HandleFunc("/job/{id}/enable", s.HandleEnableJob).Methods(http.MethodPost)
	router.HandleFunc("/job/{id}/disable", s.HandleDisableJob).Methods(http.MethodPost)

	router.HandleFunc("/event", s.HandleEvent).Methods(http.MethodPost)
	router.HandleFunc("/hook/{path}", s.HandleWebhook).Methods(http.MethodPost)

	router.HandleFunc("/run/{id}", s.HandleGetRun).Methods(http.MethodGet)
	router.HandleFunc("/runs", s.HandleListRuns).Methods(http.MethodGet)
	router.HandleFunc("/run/{id}/cancel", s.HandleCancelRun).Methods(http.MethodPost)

	router.HandleFunc("/stats", s.HandleStats).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
	res, _ := json.Marshal(message)
	w.Write(res)
}

func respondOKWithoutBody(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
