package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	pkgerrors "github.com/angelmondragon/aquaflow-backend/pkg/errors"
	"github.com/angelmondragon/aquaflow-backend/pkg/logger"
	"github.com/angelmondragon/aquaflow-backend/pkg/types"
)

// businessCodes are rejections whose own message is safe to show callers.
// Everything else falls back to the code's public message.
var businessCodes = map[pkgerrors.Code]struct{}{
	pkgerrors.CodeValidation:         {},
	pkgerrors.CodeUnauthorized:       {},
	pkgerrors.CodeForbidden:          {},
	pkgerrors.CodeNotFound:           {},
	pkgerrors.CodeInsufficientStock:  {},
	pkgerrors.CodeInsufficientPoints: {},
	pkgerrors.CodeInvalidTransition:  {},
	pkgerrors.CodeProductInactive:    {},
	pkgerrors.CodeZoneInactive:       {},
	pkgerrors.CodeAlreadyAssigned:    {},
	pkgerrors.CodeIdempotency:        {},
	pkgerrors.CodeRateLimit:          {},
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError renders err as the error envelope and logs it: 5xx at error
// level with a stack, rejections at warn.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	body := types.APIError{
		Code:      string(typed.Code()),
		Message:   publicMessage(typed, meta),
		Retryable: meta.Retryable,
	}
	if d := typed.Details(); meta.DetailsAllowed && d != nil {
		body.Details = d
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.LogFields(err))
		ctx = logg.WithField(ctx, "status", meta.HTTPStatus)
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}

	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: body})
}

func publicMessage(e *pkgerrors.Error, meta pkgerrors.Metadata) string {
	if _, ok := businessCodes[e.Code()]; ok && e.Message() != "" {
		return e.Message()
	}
	return meta.PublicMessage
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Int("status", status).Msg("response.encode_failed")
	}
}
