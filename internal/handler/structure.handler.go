package handler

import (
	"net/http"

	"structure-service/internal/domain"
	"structure-service/internal/pkg/response"
	"structure-service/internal/service"

	"github.com/go-chi/chi/v5"
)

type StructureHandler struct {
	service *service.StructureService
}

func NewStructureHandler(s *service.StructureService) *StructureHandler {
	return &StructureHandler{service: s}
}

// ============================================================================
// MODULES
// ============================================================================

func (h *StructureHandler) CreateModule(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req domain.CreateModuleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.ProjectID = chi.URLParam(r, "projectID")

	m, err := h.service.CreateModule(r.Context(), userID, &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, m)
}

func (h *StructureHandler) GetModule(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	m, err := h.service.GetModule(r.Context(), userID, chi.URLParam(r, "moduleID"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, m)
}

func (h *StructureHandler) UpdateModule(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req domain.UpdateModuleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	m, err := h.service.UpdateModule(r.Context(), userID, chi.URLParam(r, "moduleID"), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, m)
}

func (h *StructureHandler) MoveModule(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	dir, ok := parseDirection(req.Direction)
	if !ok {
		response.Error(w, http.StatusBadRequest, "direction must be UP or DOWN")
		return
	}

	if err := h.service.MoveModule(r.Context(), userID, chi.URLParam(r, "moduleID"), dir); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, nil)
}

func (h *StructureHandler) SnapshotModule(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req snapshotRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	v, err := h.service.SnapshotModule(r.Context(), userID, chi.URLParam(r, "moduleID"), req.Changelog)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, v)
}

func (h *StructureHandler) RollbackModule(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req rollbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.VersionNumber < 1 {
		response.Error(w, http.StatusBadRequest, "version_number must be positive")
		return
	}

	v, err := h.service.RollbackModule(r.Context(), userID, chi.URLParam(r, "moduleID"), req.VersionNumber, req.Changelog)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, v)
}

func (h *StructureHandler) PublishModule(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req publishRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.VersionNumber < 1 {
		response.Error(w, http.StatusBadRequest, "version_number must be positive")
		return
	}

	v, err := h.service.PublishModule(r.Context(), userID, chi.URLParam(r, "moduleID"), req.VersionNumber)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, v)
}

func (h *StructureHandler) ListModuleVersions(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	versions, err := h.service.ListModuleVersions(r.Context(), userID, chi.URLParam(r, "moduleID"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, versions)
}

func (h *StructureHandler) DeleteModule(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	opts := domain.DeleteOptions{
		Cascade: boolQuery(r, "cascade"),
		Force:   boolQuery(r, "force"),
	}
	if err := h.service.DeleteModule(r.Context(), userID, chi.URLParam(r, "moduleID"), opts); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, nil)
}

func (h *StructureHandler) RestoreModule(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	if err := h.service.RestoreModule(r.Context(), userID, chi.URLParam(r, "moduleID")); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, nil)
}

// ============================================================================
// FEATURES
// ============================================================================

func (h *StructureHandler) CreateFeature(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req domain.CreateFeatureRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.ModuleID = chi.URLParam(r, "moduleID")

	f, err := h.service.CreateFeature(r.Context(), userID, &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, f)
}

func (h *StructureHandler) GetFeature(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	f, err := h.service.GetFeature(r.Context(), userID, chi.URLParam(r, "featureID"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, f)
}

func (h *StructureHandler) UpdateFeature(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req domain.UpdateFeatureRequest
	if !decodeBody(w, r, &req) {
		return
	}

	f, err := h.service.UpdateFeature(r.Context(), userID, chi.URLParam(r, "featureID"), &req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, f)
}

func (h *StructureHandler) MoveFeature(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	dir, ok := parseDirection(req.Direction)
	if !ok {
		response.Error(w, http.StatusBadRequest, "direction must be UP or DOWN")
		return
	}

	if err := h.service.MoveFeature(r.Context(), userID, chi.URLParam(r, "featureID"), dir); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, nil)
}

func (h *StructureHandler) SnapshotFeature(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req snapshotRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	v, err := h.service.SnapshotFeature(r.Context(), userID, chi.URLParam(r, "featureID"), req.Changelog)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, v)
}

func (h *StructureHandler) RollbackFeature(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req rollbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.VersionNumber < 1 {
		response.Error(w, http.StatusBadRequest, "version_number must be positive")
		return
	}

	v, err := h.service.RollbackFeature(r.Context(), userID, chi.URLParam(r, "featureID"), req.VersionNumber, req.Changelog)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, v)
}

func (h *StructureHandler) PublishFeature(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req publishRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.VersionNumber < 1 {
		response.Error(w, http.StatusBadRequest, "version_number must be positive")
		return
	}

	v, err := h.service.PublishFeature(r.Context(), userID, chi.URLParam(r, "featureID"), req.VersionNumber)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, v)
}

func (h *StructureHandler) ListFeatureVersions(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	versions, err := h.service.ListFeatureVersions(r.Context(), userID, chi.URLParam(r, "featureID"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, versions)
}

func (h *StructureHandler) DeleteFeature(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	opts := domain.DeleteOptions{
		Cascade: boolQuery(r, "cascade"),
		Force:   boolQuery(r, "force"),
	}
	if err := h.service.DeleteFeature(r.Context(), userID, chi.URLParam(r, "featureID"), opts); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, nil)
}

func (h *StructureHandler) RestoreFeature(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	if err := h.service.RestoreFeature(r.Context(), userID, chi.URLParam(r, "featureID")); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, nil)
}

// ============================================================================
// STRUCTURE
// ============================================================================

func (h *StructureHandler) GetStructure(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	tree, err := h.service.GetStructure(r.Context(), userID, chi.URLParam(r, "projectID"), boolQuery(r, "published"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, tree)
}
