package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bluecast/internal/middleware"
	"bluecast/internal/models"
	"bluecast/internal/service"
	gwtypes "bluecast/pkg/gateway/types"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const maxRequestBodyBytes = 32 << 20 // attachments arrive base64-encoded

type Server struct {
	cfg         *models.Config
	router      *mux.Router
	logger      *logrus.Logger
	dispatcher  *service.Dispatcher
	broadcaster *service.Broadcaster
	reconciler  *service.DeliveryReconciler
	server      *http.Server
}

func NewServer(cfg *models.Config, dispatcher *service.Dispatcher, broadcaster *service.Broadcaster, reconciler *service.DeliveryReconciler, logger *logrus.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		router:      mux.NewRouter(),
		logger:      logger,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		reconciler:  reconciler,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	webhook := s.router.PathPrefix("/webhooks/gateway").Subrouter()
	webhook.Use(middleware.WebhookObservabilityMiddleware(s.logger, "gateway"))
	webhook.HandleFunc("", s.handleGatewayWebhook()).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/send", s.handleSend()).Methods(http.MethodPost)
	api.HandleFunc("/send/contact-card", s.handleSendContactCard()).Methods(http.MethodPost)
	api.HandleFunc("/broadcast", s.handleBroadcast()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleGatewayWebhook is the reconciliation intake: the gateway posts one
// event per request, signed with the shared webhook secret.
func (s *Server) handleGatewayWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := verifySignature(r, s.cfg.Gateway.WebhookSecret, signatureHeader)
		if err != nil {
			s.logger.WithError(err).Warn("Rejected webhook request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var event gwtypes.Event
		if err := json.Unmarshal(body, &event); err != nil {
			http.Error(w, "malformed event payload", http.StatusBadRequest)
			return
		}

		if err := s.reconciler.Apply(r.Context(), event); err != nil {
			s.logger.WithError(err).WithField(service.LogFieldEvent, event.Type).Error("Failed to apply gateway event")
			http.Error(w, "event processing failed", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// sendPayload is the wire shape of /api/send. Attachment bytes travel
// base64-encoded in the data field.
type sendPayload struct {
	Kind     models.RequestKind `json:"kind"`
	Routing  string             `json:"routing"`
	MemberID string             `json:"memberId"`
	Body     string             `json:"body"`

	Data     string `json:"data,omitempty"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mimeType,omitempty"`

	TargetID  string `json:"targetId,omitempty"`
	Reaction  string `json:"reaction,omitempty"`
	PartIndex int    `json:"partIndex,omitempty"`
}

func (p sendPayload) toRequest() (models.SendRequest, error) {
	switch p.Kind {
	case models.RequestText:
		return models.NewTextRequest(p.Routing, p.MemberID, p.Body), nil
	case models.RequestAttachment:
		data, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return models.SendRequest{}, &models.ValidationError{Field: "data", Message: "attachment data must be base64"}
		}
		return models.NewAttachmentRequest(p.Routing, p.MemberID, models.Attachment{
			Data:     data,
			Filename: p.Filename,
			MimeType: p.MimeType,
		}, p.Body), nil
	case models.RequestReaction:
		return models.NewReactionRequest(p.Routing, p.MemberID, p.TargetID, p.Reaction, p.PartIndex), nil
	case models.RequestReply:
		return models.NewReplyRequest(p.Routing, p.MemberID, p.TargetID, p.Body, p.PartIndex), nil
	default:
		return models.SendRequest{}, &models.ValidationError{Field: "kind", Message: "unknown request kind"}
	}
}

func (s *Server) handleSend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

		var payload sendPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}

		req, err := payload.toRequest()
		if err != nil {
			writeSendError(w, err)
			return
		}

		result, err := s.dispatcher.Send(r.Context(), req)
		if err != nil {
			writeSendError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

type contactCardPayload struct {
	Routing     string `json:"routing"`
	MemberID    string `json:"memberId"`
	DisplayName string `json:"displayName"`
	Phone       string `json:"phone"`
	Email       string `json:"email,omitempty"`
}

func (s *Server) handleSendContactCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload contactCardPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}

		generator := service.VCardGenerator{
			DisplayName: payload.DisplayName,
			Phone:       payload.Phone,
			Email:       payload.Email,
		}

		result, err := s.dispatcher.SendContactCard(r.Context(), payload.Routing, payload.MemberID, generator)
		if err != nil {
			writeSendError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

type broadcastPayload struct {
	Message    string              `json:"message"`
	Recipients []service.Recipient `json:"recipients"`
}

func (s *Server) handleBroadcast() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload broadcastPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		if payload.Message == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}
		if len(payload.Recipients) == 0 {
			http.Error(w, "at least one recipient is required", http.StatusBadRequest)
			return
		}

		// Rate pacing makes large broadcasts slow; the report is returned
		// once every recipient has been attempted.
		report := s.broadcaster.SendBroadcast(r.Context(), payload.Message, payload.Recipients)
		writeJSON(w, http.StatusOK, report)
	}
}

func writeSendError(w http.ResponseWriter, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validationErr.Error()})
		return
	}

	var gatewayErr *models.GatewayError
	if errors.As(err, &gatewayErr) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": gatewayErr.Error()})
		return
	}

	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
