package http

import (
	"net/http"

	"github.com/dkeye/cardlobby/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var statusByCode = map[string]int{
	"table_not_found":             http.StatusNotFound,
	"invitation_not_found":        http.StatusNotFound,
	"table_full":                  http.StatusConflict,
	"table_not_joinable":          http.StatusConflict,
	"table_not_removable":         http.StatusConflict,
	"invalid_transition":          http.StatusConflict,
	"already_seated":              http.StatusConflict,
	"invitation_already_resolved": http.StatusConflict,
	"invalid_settings":            http.StatusUnprocessableEntity,
	"self_invite":                 http.StatusUnprocessableEntity,
	"invalid_request":             http.StatusBadRequest,
	"insufficient_funds":          http.StatusPaymentRequired,
	"invitation_expired":          http.StatusGone,
	"not_invitee":                 http.StatusForbidden,
	"rate_limited":                http.StatusTooManyRequests,
	"invalid_user":                http.StatusUnauthorized,
}

// StatusOf maps a lobby error to its HTTP status.
func StatusOf(err error) int {
	if s, ok := statusByCode[domain.Code(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func abortWithError(c *gin.Context, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, errorBody{Error: domain.Code(err), Message: err.Error()})
}
