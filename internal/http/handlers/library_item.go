package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/mdr-library-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/http/response"
	"github.com/yungbote/mdr-library-backend/internal/platform/apierr"
	"github.com/yungbote/mdr-library-backend/internal/platform/ctxutil"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
	"github.com/yungbote/mdr-library-backend/internal/services"
)

type createItemRequest struct {
	UID     string          `json:"uid"`
	Library string          `json:"library"`
	Value   json.RawMessage `json:"value"`
}

type editDraftRequest struct {
	Value             json.RawMessage `json:"value"`
	ChangeDescription string          `json:"change_description"`
}

// LibraryItemHandler serves one entity type under /api/<collection>.
type LibraryItemHandler[V any] struct {
	log        *logger.Logger
	collection string
	svc        services.LibraryItemService[V]
}

func NewLibraryItemHandler[V any](log *logger.Logger, collection string, svc services.LibraryItemService[V]) *LibraryItemHandler[V] {
	if log == nil {
		log = logger.NewNop()
	}
	collection = strings.Trim(strings.TrimSpace(collection), "/")
	return &LibraryItemHandler[V]{
		log:        log.With("handler", "LibraryItemHandler", "collection", collection),
		collection: collection,
		svc:        svc,
	}
}

func (h *LibraryItemHandler[V]) Register(api *gin.RouterGroup) {
	g := api.Group("/" + h.collection)
	g.POST("", h.Create)
	g.GET("/:uid", h.Get)
	g.GET("/:uid/history", h.History)
	g.GET("/:uid/versions", h.Versions)
	g.PATCH("/:uid", h.EditDraft)
	g.POST("/:uid/approvals", h.Approve)
	g.POST("/:uid/versions", h.CreateNewVersion)
	g.DELETE("/:uid/activations", h.Retire)
	g.POST("/:uid/activations", h.Reactivate)
	g.DELETE("/:uid", h.SoftDelete)
}

func (h *LibraryItemHandler[V]) decodeValue(raw json.RawMessage) (V, error) {
	var v V
	if len(raw) == 0 || string(raw) == "null" {
		return v, errors.New("missing value")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, err
	}
	return v, nil
}

func (h *LibraryItemHandler[V]) Create(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	value, err := h.decodeValue(req.Value)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_value", err)
		return
	}
	out, err := h.svc.Create(c.Request.Context(), domainagg.CreateLibraryItemInput[V]{
		UID:     req.UID,
		Library: req.Library,
		Value:   value,
		Author:  ctxutil.AuthorFrom(c.Request.Context()),
	})
	if err != nil {
		h.fail(c, "create", err)
		return
	}
	response.RespondCreated(c, gin.H{"item": out})
}

func (h *LibraryItemHandler[V]) Get(c *gin.Context) {
	out, err := h.svc.Get(c.Request.Context(), c.Param("uid"))
	if err != nil {
		h.fail(c, "get", err)
		return
	}
	response.RespondOK(c, gin.H{"item": out})
}

func (h *LibraryItemHandler[V]) History(c *gin.Context) {
	entries, err := h.svc.History(c.Request.Context(), c.Param("uid"))
	if err != nil {
		h.fail(c, "history", err)
		return
	}
	response.RespondOK(c, gin.H{"history": entries})
}

func (h *LibraryItemHandler[V]) Versions(c *gin.Context) {
	versions, err := h.svc.Versions(c.Request.Context(), c.Param("uid"))
	if err != nil {
		h.fail(c, "versions", err)
		return
	}
	response.RespondOK(c, gin.H{"versions": versions})
}

func (h *LibraryItemHandler[V]) EditDraft(c *gin.Context) {
	var req editDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	value, err := h.decodeValue(req.Value)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_value", err)
		return
	}
	out, err := h.svc.EditDraft(c.Request.Context(), domainagg.EditDraftInput[V]{
		UID:               c.Param("uid"),
		Value:             value,
		ChangeDescription: req.ChangeDescription,
		Author:            ctxutil.AuthorFrom(c.Request.Context()),
	})
	if err != nil {
		h.fail(c, "edit", err)
		return
	}
	response.RespondOK(c, gin.H{"item": out})
}

func (h *LibraryItemHandler[V]) Approve(c *gin.Context) {
	h.transition(c, "approve", h.svc.Approve)
}

func (h *LibraryItemHandler[V]) CreateNewVersion(c *gin.Context) {
	h.transition(c, "new_version", h.svc.CreateNewVersion)
}

func (h *LibraryItemHandler[V]) Retire(c *gin.Context) {
	h.transition(c, "retire", h.svc.Retire)
}

func (h *LibraryItemHandler[V]) Reactivate(c *gin.Context) {
	h.transition(c, "reactivate", h.svc.Reactivate)
}

func (h *LibraryItemHandler[V]) SoftDelete(c *gin.Context) {
	entry, err := h.svc.SoftDelete(c.Request.Context(), h.transitionInput(c))
	if err != nil {
		h.fail(c, "delete", err)
		return
	}
	response.RespondOK(c, gin.H{"entry": entry})
}

func (h *LibraryItemHandler[V]) transition(
	c *gin.Context,
	action string,
	fn func(ctx context.Context, in domainagg.TransitionInput) (services.ItemView[V], error),
) {
	out, err := fn(c.Request.Context(), h.transitionInput(c))
	if err != nil {
		h.fail(c, action, err)
		return
	}
	response.RespondOK(c, gin.H{"item": out})
}

func (h *LibraryItemHandler[V]) transitionInput(c *gin.Context) domainagg.TransitionInput {
	return domainagg.TransitionInput{
		UID:    c.Param("uid"),
		Author: ctxutil.AuthorFrom(c.Request.Context()),
	}
}

func (h *LibraryItemHandler[V]) fail(c *gin.Context, action string, err error) {
	if apierr.From(err).Status >= http.StatusInternalServerError {
		h.log.Error("library item request failed", "action", action, "uid", c.Param("uid"), "error", err)
	}
	response.RespondFailure(c, err)
}
