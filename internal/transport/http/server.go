package http

import (
	"fmt"
	"net/http"

	"github.com/NewsFlash/internal/app"
	"github.com/NewsFlash/pkg/config"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewHTTPServer(cfg *config.Config, sessions *app.SessionManager) *http.Server {
	return &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: NewRouter(sessions),
	}
}

func NewRouter(sessions *app.SessionManager) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "OK")
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())

	h := &FeedHandler{sessions: sessions}
	r.HandleFunc("/sessions", h.OpenSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", h.GetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", h.CloseSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/refresh", h.Refresh).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/next", h.LoadNextPage).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/rows/{index:[0-9]+}", h.Row).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/visible", h.Visible).Methods(http.MethodPost)
	r.HandleFunc("/users/{user}/interests", h.SetInterests).Methods(http.MethodPut)
	return r
}
