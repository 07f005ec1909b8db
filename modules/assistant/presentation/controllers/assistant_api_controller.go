package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/presentation/dtos"
	"github.com/flotatrack/fleet-assistant/modules/assistant/presentation/mappers"
	"github.com/flotatrack/fleet-assistant/modules/assistant/services"
	"github.com/flotatrack/fleet-assistant/pkg/application"
	"github.com/flotatrack/fleet-assistant/pkg/composables"
	"github.com/flotatrack/fleet-assistant/pkg/httpapi"
	"github.com/flotatrack/fleet-assistant/pkg/middleware"
)

const maxBodyBytes = 64 << 10

type ControllerOptions struct {
	UserIDHeader    string
	CompanyIDHeader string
}

type AssistantAPIController struct {
	app       application.Application
	assistant *services.AssistantService
	opts      ControllerOptions
	basePath  string
}

func NewAssistantAPIController(app application.Application, opts ControllerOptions) application.Controller {
	if opts.UserIDHeader == "" {
		opts.UserIDHeader = "X-User-ID"
	}
	if opts.CompanyIDHeader == "" {
		opts.CompanyIDHeader = "X-Company-ID"
	}
	return &AssistantAPIController{
		app:       app,
		assistant: app.Service(services.AssistantService{}).(*services.AssistantService),
		opts:      opts,
		basePath:  "/api/v1/assistant",
	}
}

func (c *AssistantAPIController) Key() string {
	return c.basePath
}

func (c *AssistantAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.WithIdentity(c.opts.UserIDHeader, c.opts.CompanyIDHeader))
	router.HandleFunc("/query", c.Query).Methods(http.MethodPost)
	router.HandleFunc("/suggestions", c.Suggestions).Methods(http.MethodGet)
	router.HandleFunc("/stats", c.Stats).Methods(http.MethodGet)
	router.HandleFunc("/memory", c.Forget).Methods(http.MethodDelete)
}

func (c *AssistantAPIController) logger(r *http.Request) *logrus.Entry {
	return composables.UseLoggerOr(r.Context(), c.app.Logger().WithField("controller", "assistant"))
}

// identityKey reads the conversation key WithIdentity put in the context.
func identityKey(w http.ResponseWriter, r *http.Request) (conversation.Key, bool) {
	identity, err := composables.UseIdentity(r.Context())
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing identity", nil)
		return conversation.Key{}, false
	}
	return conversation.Key{UserID: identity.UserID, CompanyID: identity.CompanyID}, true
}

func (c *AssistantAPIController) Query(w http.ResponseWriter, r *http.Request) {
	key, ok := identityKey(w, r)
	if !ok {
		return
	}

	var dto dtos.QueryRequestDTO
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&dto); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "ASSISTANT_INVALID_JSON", "invalid json", nil)
		return
	}

	resp, err := c.assistant.ProcessQuery(r.Context(), services.QueryRequest{
		Message:   dto.Message,
		UserID:    key.UserID,
		CompanyID: key.CompanyID,
	})
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		_ = httpapi.WriteCodedError(w, http.StatusBadRequest, services.ErrInvalidRequest, "ASSISTANT_INVALID_REQUEST")
		return
	case errors.Is(err, services.ErrRateLimited):
		_ = httpapi.WriteCodedError(w, http.StatusTooManyRequests, services.ErrRateLimited, "ASSISTANT_RATE_LIMITED")
		return
	case err != nil:
		c.logger(r).WithError(err).Error("assistant query failed")
		_ = httpapi.WriteCodedError(w, http.StatusInternalServerError, err, services.ErrInternal.Code)
		return
	}
	if err := httpapi.WriteJSON(w, http.StatusOK, mappers.QueryResponseToDTO(resp)); err != nil {
		c.logger(r).WithError(err).Warn("failed to write assistant response")
	}
}

func (c *AssistantAPIController) Suggestions(w http.ResponseWriter, r *http.Request) {
	key, ok := identityKey(w, r)
	if !ok {
		return
	}
	suggestions, err := c.assistant.Memory().GetSuggestions(r.Context(), key)
	if err != nil {
		c.logger(r).WithError(err).Warn("suggestions fell back to defaults")
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"suggestions": mappers.SuggestionsToDTO(suggestions),
	})
}

func (c *AssistantAPIController) Stats(w http.ResponseWriter, r *http.Request) {
	key, ok := identityKey(w, r)
	if !ok {
		return
	}
	stats, err := c.assistant.Memory().GetLearningStats(r.Context(), key)
	if err != nil {
		c.logger(r).WithError(err).Error("failed to load learning stats")
		_ = httpapi.WriteCodedError(w, http.StatusInternalServerError, err, services.ErrInternal.Code)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, mappers.LearningStatsToDTO(stats))
}

func (c *AssistantAPIController) Forget(w http.ResponseWriter, r *http.Request) {
	key, ok := identityKey(w, r)
	if !ok {
		return
	}
	if err := c.assistant.Forget(r.Context(), key); err != nil {
		c.logger(r).WithError(err).Error("failed to forget conversation")
		_ = httpapi.WriteCodedError(w, http.StatusInternalServerError, err, services.ErrInternal.Code)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
