package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	holdermodels "vialidad/internal/holder/models"
	"vialidad/internal/license/models"
	"vialidad/internal/license/service"
	"vialidad/internal/platform/middleware"
	dErrors "vialidad/pkg/domain-errors"
	"vialidad/pkg/platform/httputil"
)

//go:generate mockgen -source=handler.go -destination=mocks/service_mock.go -package=mocks

// Service defines the license lifecycle operations the handler exposes.
type Service interface {
	Issue(ctx context.Context, req service.IssueRequest) (*models.License, error)
	Renew(ctx context.Context, req service.RenewRequest) (*models.License, error)
	IssueCopy(ctx context.Context, req service.CopyRequest) (*models.License, error)
	ListExpired(ctx context.Context) ([]*models.License, error)
	CountExpired(ctx context.Context) (int64, error)
	CountIssued(ctx context.Context) (int64, error)
	FindByDocument(ctx context.Context, docType holdermodels.DocumentType, docNumber string) (*holdermodels.Holder, []*models.License, error)
}

// Handler serves the license lifecycle endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{logger: logger, service: service}
}

// Register mounts the license routes. Callers wrap the router with the auth
// middleware; every license route requires an authenticated operator.
func (h *Handler) Register(r chi.Router) {
	r.Route("/licenses", func(r chi.Router) {
		r.Post("/", h.handleIssue)
		r.Post("/renew", h.handleRenew)
		r.Post("/copies", h.handleCopy)
		r.Get("/count", h.handleCount)
		r.Get("/expired", h.handleListExpired)
		r.Get("/expired/count", h.handleCountExpired)
		r.Get("/by-document", h.handleByDocument)
	})
}

type issueRequest struct {
	HolderID string `json:"holder_id"`
	Class    string `json:"class"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	holderID, err := uuid.Parse(req.HolderID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid holder_id"))
		return
	}
	class, err := models.ParseClass(req.Class)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	license, err := h.service.Issue(ctx, service.IssueRequest{
		HolderID:      holderID,
		Class:         class,
		OperatorEmail: middleware.GetOperatorEmail(ctx),
	})
	if err != nil {
		h.writeServiceError(ctx, w, "issue license", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, license)
}

type renewRequest struct {
	LicenseID    string  `json:"license_id"`
	Reason       string  `json:"reason"`
	NewFirstName *string `json:"new_first_name"`
	NewLastName  *string `json:"new_last_name"`
	NewAddress   *string `json:"new_address"`
	CopyNumber   *int    `json:"copy_number"`
	CopyReason   string  `json:"copy_reason"`
	OriginalID   *string `json:"original_id"`
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req renewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	licenseID, err := uuid.Parse(req.LicenseID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid license_id"))
		return
	}
	var originalID *uuid.UUID
	if req.OriginalID != nil {
		id, err := uuid.Parse(*req.OriginalID)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid original_id"))
			return
		}
		originalID = &id
	}

	license, err := h.service.Renew(ctx, service.RenewRequest{
		LicenseID:    licenseID,
		Reason:       models.RenewalReason(req.Reason),
		NewFirstName: req.NewFirstName,
		NewLastName:  req.NewLastName,
		NewAddress:   req.NewAddress,
		CopyNumber:   req.CopyNumber,
		CopyReason:   req.CopyReason,
		OriginalID:   originalID,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "renew license", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, license)
}

type copyRequest struct {
	LicenseID string `json:"license_id"`
	Reason    string `json:"reason"`
}

func (h *Handler) handleCopy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req copyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	licenseID, err := uuid.Parse(req.LicenseID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid license_id"))
		return
	}
	if req.Reason == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "reason is required"))
		return
	}

	license, err := h.service.IssueCopy(ctx, service.CopyRequest{
		LicenseID:     licenseID,
		Reason:        req.Reason,
		OperatorEmail: middleware.GetOperatorEmail(ctx),
	})
	if err != nil {
		h.writeServiceError(ctx, w, "issue license copy", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, license)
}

func (h *Handler) handleListExpired(w http.ResponseWriter, r *http.Request) {
	licenses, err := h.service.ListExpired(r.Context())
	if err != nil {
		h.writeServiceError(r.Context(), w, "list expired licenses", err)
		return
	}
	if licenses == nil {
		licenses = []*models.License{}
	}
	httputil.WriteJSON(w, http.StatusOK, licenses)
}

func (h *Handler) handleCountExpired(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.CountExpired(r.Context())
	if err != nil {
		h.writeServiceError(r.Context(), w, "count expired licenses", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.CountIssued(r.Context())
	if err != nil {
		h.writeServiceError(r.Context(), w, "count licenses", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"count": n})
}

type byDocumentResponse struct {
	Holder   *holdermodels.Holder `json:"holder"`
	Licenses []*models.License    `json:"licenses"`
}

func (h *Handler) handleByDocument(w http.ResponseWriter, r *http.Request) {
	docType, err := holdermodels.ParseDocumentType(r.URL.Query().Get("document_type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	docNumber := r.URL.Query().Get("document_number")
	if docNumber == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "document_number is required"))
		return
	}

	holder, licenses, err := h.service.FindByDocument(r.Context(), docType, docNumber)
	if err != nil {
		h.writeServiceError(r.Context(), w, "find licenses by document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, byDocumentResponse{Holder: holder, Licenses: licenses})
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	var domainErr *dErrors.Error
	if dErrors.HasCode(err, dErrors.CodeInternal) || !errors.As(err, &domainErr) {
		h.logger.ErrorContext(ctx, "license operation failed",
			"op", op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
