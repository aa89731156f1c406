package handlers

import (
	"errors"
	"net/http"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/service"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/utils"
)

// writeServiceErr maps the service error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is a 500.
func writeServiceErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		utils.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		utils.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrConflict):
		utils.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		utils.Error(w, http.StatusUnprocessableEntity, err.Error())
	default:
		utils.Error(w, http.StatusInternalServerError, err.Error())
	}
}
