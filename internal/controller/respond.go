// internal/controller/respond.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/wanzami/mailblast-backend/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps sentinel errors onto HTTP status codes; anything
// unrecognized is a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		campaignNotFound *appErrors.ErrCampaignNotFound
		templateNotFound *appErrors.ErrTemplateNotFound
		invalidState     *appErrors.ErrInvalidCampaignState
		validation       *appErrors.ErrValidation
	)
	switch {
	case errors.As(err, &campaignNotFound), errors.As(err, &templateNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
