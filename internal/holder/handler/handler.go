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

	"vialidad/internal/holder/models"
	"vialidad/internal/holder/service"
	"vialidad/internal/platform/middleware"
	dErrors "vialidad/pkg/domain-errors"
	"vialidad/pkg/platform/httputil"
)

// Service defines the holder operations the handler exposes.
type Service interface {
	Create(ctx context.Context, req service.CreateRequest) (*models.Holder, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Holder, error)
	GetByDocument(ctx context.Context, docType models.DocumentType, docNumber string) (*models.Holder, error)
	SearchWithActiveLicenses(ctx context.Context, filter service.SearchFilter) ([]*models.Holder, error)
	UpdateByDocument(ctx context.Context, docType models.DocumentType, docNumber string, req service.UpdateRequest) (*models.Holder, error)
	DeleteByDocument(ctx context.Context, docType models.DocumentType, docNumber string) error
	List(ctx context.Context) ([]*models.Holder, error)
	Count(ctx context.Context) (int64, error)
}

// Handler serves the holder registry endpoints.
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

// Register mounts the holder routes. Callers wrap the router with the auth
// middleware; every holder route requires an authenticated operator.
func (h *Handler) Register(r chi.Router) {
	r.Route("/holders", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/count", h.handleCount)
		r.Get("/active-licenses", h.handleSearchActiveLicenses)
		r.Get("/{id}", h.handleGetByID)
		r.Route("/{documentType}/{documentNumber}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
		})
	})
}

type createRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	BirthDate      string `json:"birth_date"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	BloodGroup     string `json:"blood_group"`
	RhFactor       string `json:"rh_factor"`
	Address        string `json:"address"`
	OrganDonor     bool   `json:"organ_donor"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	docType, err := models.ParseDocumentType(req.DocumentType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	holder, err := h.service.Create(ctx, service.CreateRequest{
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		BirthDate:      req.BirthDate,
		DocumentType:   docType,
		DocumentNumber: req.DocumentNumber,
		BloodGroup:     models.BloodGroup(req.BloodGroup),
		RhFactor:       models.RhFactor(req.RhFactor),
		Address:        req.Address,
		OrganDonor:     req.OrganDonor,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "create holder", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, holder)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	docType, docNumber, ok := h.documentParams(w, r)
	if !ok {
		return
	}
	holder, err := h.service.GetByDocument(r.Context(), docType, docNumber)
	if err != nil {
		h.writeServiceError(r.Context(), w, "get holder", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, holder)
}

func (h *Handler) handleGetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid holder id"))
		return
	}
	holder, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(r.Context(), w, "get holder by id", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, holder)
}

func (h *Handler) handleSearchActiveLicenses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := service.SearchFilter{
		Name:       query.Get("name"),
		DonorsOnly: query.Get("donors_only") == "true",
	}
	for _, raw := range query["blood_group"] {
		bg, err := models.ParseBloodGroup(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.BloodGroups = append(filter.BloodGroups, bg)
	}
	if raw := query.Get("rh_factor"); raw != "" {
		rh, err := models.ParseRhFactor(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.RhFactor = &rh
	}

	holders, err := h.service.SearchWithActiveLicenses(r.Context(), filter)
	if err != nil {
		h.writeServiceError(r.Context(), w, "search holders with active licenses", err)
		return
	}
	if holders == nil {
		holders = []*models.Holder{}
	}
	httputil.WriteJSON(w, http.StatusOK, holders)
}

type updateRequest struct {
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	BirthDate  *string `json:"birth_date"`
	BloodGroup *string `json:"blood_group"`
	RhFactor   *string `json:"rh_factor"`
	Address    *string `json:"address"`
	OrganDonor *bool   `json:"organ_donor"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	docType, docNumber, ok := h.documentParams(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	update := service.UpdateRequest{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		BirthDate:  req.BirthDate,
		Address:    req.Address,
		OrganDonor: req.OrganDonor,
	}
	if req.BloodGroup != nil {
		bg := models.BloodGroup(*req.BloodGroup)
		update.BloodGroup = &bg
	}
	if req.RhFactor != nil {
		rh := models.RhFactor(*req.RhFactor)
		update.RhFactor = &rh
	}

	holder, err := h.service.UpdateByDocument(r.Context(), docType, docNumber, update)
	if err != nil {
		h.writeServiceError(r.Context(), w, "update holder", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, holder)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	docType, docNumber, ok := h.documentParams(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteByDocument(r.Context(), docType, docNumber); err != nil {
		h.writeServiceError(r.Context(), w, "delete holder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	holders, err := h.service.List(r.Context())
	if err != nil {
		h.writeServiceError(r.Context(), w, "list holders", err)
		return
	}
	if holders == nil {
		holders = []*models.Holder{}
	}
	httputil.WriteJSON(w, http.StatusOK, holders)
}

func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Count(r.Context())
	if err != nil {
		h.writeServiceError(r.Context(), w, "count holders", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *Handler) documentParams(w http.ResponseWriter, r *http.Request) (models.DocumentType, string, bool) {
	docType, err := models.ParseDocumentType(chi.URLParam(r, "documentType"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", "", false
	}
	docNumber := chi.URLParam(r, "documentNumber")
	if docNumber == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "document number is required"))
		return "", "", false
	}
	return docType, docNumber, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	var domainErr *dErrors.Error
	if dErrors.HasCode(err, dErrors.CodeInternal) || !errors.As(err, &domainErr) {
		h.logger.ErrorContext(ctx, "holder operation failed",
			"op", op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
