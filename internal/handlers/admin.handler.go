package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/internal/repository"
	"github.com/nimasrn/daily-mass/internal/services"
	xhttp "github.com/nimasrn/daily-mass/pkg/http"
	"github.com/nimasrn/daily-mass/pkg/logger"
)

type DeliveryRunner interface {
	Run(ctx context.Context, now time.Time, force bool) (services.RunResult, error)
}

type ContactVerifier interface {
	RequestCode(ctx context.Context, subscriberID int64, address string) error
	Confirm(ctx context.Context, subscriberID int64, address, code string) error
}

type BillingSyncer interface {
	Sync(ctx context.Context, subscriberID int64, status model.BillingStatus) error
}

type SubscriberRegistrar interface {
	Create(ctx context.Context, req model.SubscriberCreateRequest) (*model.Subscriber, error)
	FindByID(ctx context.Context, id int64) (*model.Subscriber, error)
}

type AdminHandler struct {
	scheduler   DeliveryRunner
	contacts    ContactVerifier
	billing     BillingSyncer
	subscribers SubscriberRegistrar
	clock       func() time.Time
}

func NewAdminHandler(scheduler DeliveryRunner, contacts ContactVerifier, billing BillingSyncer, subscribers SubscriberRegistrar) *AdminHandler {
	return &AdminHandler{
		scheduler:   scheduler,
		contacts:    contacts,
		billing:     billing,
		subscribers: subscribers,
		clock:       time.Now,
	}
}

// RegisterAdminRoutes mounts the operator endpoints behind a bearer token.
func RegisterAdminRoutes(e *router.Group, h *AdminHandler, token string) {
	auth := xhttp.BearerAuthMiddleware(token)
	e.POST("/admin/deliveries/run", auth(h.RunDeliveries))
	e.POST("/admin/subscribers", auth(h.CreateSubscriber))
	e.GET("/admin/subscribers/{id}", auth(h.GetSubscriber))
	e.POST("/admin/subscribers/{id}/contact/code", auth(h.RequestContactCode))
	e.POST("/admin/subscribers/{id}/contact/confirm", auth(h.ConfirmContact))
	e.PUT("/admin/subscribers/{id}/billing", auth(h.SyncBilling))
}

type runResponse struct {
	Considered int  `json:"considered"`
	Dispatched int  `json:"dispatched"`
	Paused     int  `json:"paused"`
	Skipped    int  `json:"skipped"`
	Failed     int  `json:"failed"`
	Forced     bool `json:"forced"`
}

type createSubscriberRequest struct {
	Contact           string `json:"contact"`
	DeliveryTime      string `json:"delivery_time"`
	Timezone          string `json:"timezone"`
	BibleVersion      string `json:"bible_version"`
	ContentPreference string `json:"content_preference"`
	BillingStatus     string `json:"billing_status"`
}

type contactRequest struct {
	Address string `json:"address"`
	Code    string `json:"code"`
}

type billingRequest struct {
	Status string `json:"status"`
}

/* -------------------------------- routes -------------------------------- */

// RunDeliveries runs one scheduler pass now. force=true ignores delivery
// times and the same-day guard.
func (h *AdminHandler) RunDeliveries(ctx *xhttp.RequestCtx) {
	force, _ := strconv.ParseBool(query(ctx, "force"))

	res, err := h.scheduler.Run(ctx, h.clock(), force)
	if err != nil {
		logger.Error("[admin] delivery run failed", "error", err, "force", force)
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("[admin] delivery run", "force", force, "dispatched", res.Dispatched, "failed", res.Failed)
	writeJSON(ctx, xhttp.StatusOK, runResponse{
		Considered: res.Considered,
		Dispatched: res.Dispatched,
		Paused:     res.Paused,
		Skipped:    res.Skipped,
		Failed:     res.Failed,
		Forced:     force,
	})
}

func (h *AdminHandler) CreateSubscriber(ctx *xhttp.RequestCtx) {
	var req createSubscriberRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	p := model.SubscriberCreateRequest{
		Contact:           normalizeContact(req.Contact),
		DeliveryTime:      req.DeliveryTime,
		Timezone:          req.Timezone,
		BibleVersion:      strings.ToUpper(strings.TrimSpace(req.BibleVersion)),
		ContentPreference: model.ContentPreference(req.ContentPreference),
		BillingStatus:     model.BillingStatus(req.BillingStatus),
	}
	if err := p.Validate(); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	sub, err := h.subscribers.Create(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, sub)
}

func (h *AdminHandler) GetSubscriber(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid subscriber id")
		return
	}
	sub, err := h.subscribers.FindByID(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, sub)
}

func (h *AdminHandler) RequestContactCode(ctx *xhttp.RequestCtx) {
	id, req, ok := h.contactInput(ctx)
	if !ok {
		return
	}
	if err := h.contacts.RequestCode(ctx, id, req.Address); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusAccepted)
}

func (h *AdminHandler) ConfirmContact(ctx *xhttp.RequestCtx) {
	id, req, ok := h.contactInput(ctx)
	if !ok {
		return
	}
	if req.Code == "" {
		writeError(ctx, xhttp.StatusBadRequest, "code is required")
		return
	}
	if err := h.contacts.Confirm(ctx, id, req.Address, req.Code); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]any{"subscriber_id": id, "contact": req.Address})
}

func (h *AdminHandler) SyncBilling(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid subscriber id")
		return
	}
	var req billingRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	status := model.BillingStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		writeError(ctx, xhttp.StatusBadRequest, "unknown billing status "+strconv.Quote(req.Status))
		return
	}
	if err := h.billing.Sync(ctx, id, status); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]any{"subscriber_id": id, "billing_status": status})
}

func (h *AdminHandler) contactInput(ctx *xhttp.RequestCtx) (int64, contactRequest, bool) {
	var req contactRequest
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid subscriber id")
		return 0, req, false
	}
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return 0, req, false
	}
	req.Address = normalizeContact(req.Address)
	if req.Address == "" {
		writeError(ctx, xhttp.StatusBadRequest, "address is required")
		return 0, req, false
	}
	return id, req, true
}

func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, repository.ErrSubscriberNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrContactTaken), errors.Is(err, repository.ErrOwnerChanged):
		writeError(ctx, xhttp.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidCode):
		writeError(ctx, xhttp.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrInvalidContact):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	default:
		logger.Error("[admin] request failed", "error", err, "path", string(ctx.Path()))
		writeError(ctx, xhttp.StatusInternalServerError, "internal error")
	}
}
