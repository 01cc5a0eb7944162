// Package api is the REST edge of the relay: request decoding, bearer
// authentication and error mapping around the two services. The acting
// user always comes from the verified token, never from the payload.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/services"
)

type contextKey string

const actorKey contextKey = "actor"

type Server struct {
	log      *slog.Logger
	messages services.IMessageService
	calls    services.ICallService
	gateway  http.Handler
}

func NewServer(log *slog.Logger, messages services.IMessageService, calls services.ICallService, gateway http.Handler) *Server {
	return &Server{log: log, messages: messages, calls: calls, gateway: gateway}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/ws", s.gateway)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(s.authenticate)

	v1.HandleFunc("/chats/{id}/messages", s.sendMessage).Methods(http.MethodPost)
	v1.HandleFunc("/chats/{id}/messages", s.listMessages).Methods(http.MethodGet)
	v1.HandleFunc("/chats/{id}/read", s.markChatRead).Methods(http.MethodPost)
	v1.HandleFunc("/messages/{id}", s.getMessage).Methods(http.MethodGet)
	v1.HandleFunc("/messages/{id}", s.editMessage).Methods(http.MethodPut)
	v1.HandleFunc("/messages/{id}", s.deleteMessage).Methods(http.MethodDelete)
	v1.HandleFunc("/messages/{id}/read", s.markRead).Methods(http.MethodPost)

	v1.HandleFunc("/calls", s.initiateCall).Methods(http.MethodPost)
	v1.HandleFunc("/calls/history", s.callHistory).Methods(http.MethodGet)
	v1.HandleFunc("/calls/active", s.activeCalls).Methods(http.MethodGet)
	v1.HandleFunc("/calls/{id}/answer", s.answerCall).Methods(http.MethodPost)
	v1.HandleFunc("/calls/{id}/reject", s.rejectCall).Methods(http.MethodPost)
	v1.HandleFunc("/calls/{id}/end", s.endCall).Methods(http.MethodPost)
	v1.HandleFunc("/calls/{id}/ice", s.addIceCandidate).Methods(http.MethodPost)

	return r
}

// authenticate resolves the acting user from the bearer token and stores it
// on the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, errors.ErrInvalidCredentials)
			return
		}
		claims, err := auth.ValidateToken(token)
		if err != nil {
			s.writeError(w, errors.ErrInvalidCredentials)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, claims.UserID)))
	})
}

func actor(r *http.Request) string {
	userID, _ := r.Context().Value(actorKey).(string)
	return userID
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ErrValidation
	}
	return nil
}
