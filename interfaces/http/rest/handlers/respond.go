package handlers

import (
	"net/http"

	"loom-backend/pkg/common"
	pkgerrors "loom-backend/pkg/errors"
)

// respondError maps an application error to its HTTP status and wire shape.
// Untyped errors become opaque 500s.
func respondError(w http.ResponseWriter, err error) {
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		common.RespondError(w, appErr.HTTPStatus, string(appErr.Type), appErr.Message)
		return
	}
	common.RespondError(w, http.StatusInternalServerError, string(pkgerrors.ErrorTypeInternal), "internal server error")
}
