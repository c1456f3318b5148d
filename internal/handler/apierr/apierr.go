// Package apierr maps service errors onto HTTP responses.
package apierr

import (
	"errors"
	"log"
	"net/http"

	"github.com/abimbolaoige/kfm-counsel-chat/internal/analysis/assessment"
	chatsvc "github.com/abimbolaoige/kfm-counsel-chat/internal/service/chat"
	"github.com/abimbolaoige/kfm-counsel-chat/internal/service/counsel"
	"github.com/abimbolaoige/kfm-counsel-chat/pkg/utils"
)

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, chatsvc.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatsvc.ErrInvalidTitle),
		errors.Is(err, counsel.ErrEmptyMessage),
		errors.Is(err, assessment.ErrIncompleteAssessment),
		errors.Is(err, assessment.ErrInvalidAnswer):
		return http.StatusBadRequest
	case errors.Is(err, counsel.ErrVerificationRequired):
		return http.StatusForbidden
	case errors.Is(err, counsel.ErrTurnInFlight),
		errors.Is(err, chatsvc.ErrClearUnsupported):
		return http.StatusConflict
	case errors.Is(err, counsel.ErrModelCallFailed):
		return http.StatusBadGateway
	case errors.Is(err, chatsvc.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Write responds with the status and message for err.
func Write(w http.ResponseWriter, err error) {
	status := Status(err)
	if errors.Is(err, counsel.ErrVerificationRequired) {
		utils.RespondJSON(w, status, map[string]string{
			"error": "verification required",
			"gate":  "verification",
		})
		return
	}
	if status == http.StatusInternalServerError {
		log.Printf("[http] internal error: %v", err)
		utils.RespondError(w, status, "internal error")
		return
	}
	utils.RespondError(w, status, err.Error())
}
