package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"structure-service/internal/pkg/xerrors"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Status: "success",
		Data:   data,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func Error(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Status:  "error",
		Message: msg,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// FromError maps the service error taxonomy to an HTTP status.
func FromError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xerrors.ErrNotFound),
		errors.Is(err, xerrors.ErrModuleNotFound),
		errors.Is(err, xerrors.ErrFeatureNotFound),
		errors.Is(err, xerrors.ErrParentNotFound),
		errors.Is(err, xerrors.ErrVersionNotFound):
		Error(w, http.StatusNotFound, err.Error())

	case errors.Is(err, xerrors.ErrHasActiveChildren),
		errors.Is(err, xerrors.ErrSubtreePublished),
		errors.Is(err, xerrors.ErrNotDeleted),
		errors.Is(err, xerrors.ErrParentDeleted):
		Error(w, http.StatusConflict, err.Error())

	case errors.Is(err, xerrors.ErrCyclicParent),
		errors.Is(err, xerrors.ErrSelfParent),
		errors.Is(err, xerrors.ErrCrossProject),
		errors.Is(err, xerrors.ErrNoNeighbor),
		errors.Is(err, xerrors.ErrInvalidMoveDir),
		errors.Is(err, xerrors.ErrNotPublished),
		errors.Is(err, xerrors.ErrInvalidRequest):
		Error(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, xerrors.ErrForbidden):
		Error(w, http.StatusForbidden, err.Error())

	case errors.Is(err, xerrors.ErrUnauthorized):
		Error(w, http.StatusUnauthorized, err.Error())

	default:
		// ErrPinIntegrity and unexpected store failures land here.
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}
