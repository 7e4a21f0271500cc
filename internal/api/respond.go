package api

import (
	"encoding/json"
	"net/http"

	"github.com/safar/go-pdv/internal/apperr"
	"github.com/safar/go-pdv/internal/logger"
	"go.uber.org/zap"
)

const msgInternal = "Erro interno do servidor."

type messageResponse struct {
	Message string `json:"mensagem"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Warn("failed to encode response", zap.Error(err))
	}
}

func respondMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respondJSON(w, r, status, messageResponse{Message: msg})
}

// statusFor is the single mapping from error kind to HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindReference, apperr.KindInsufficientStock, apperr.KindConflict:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"mensagem": ...}. Server-side failures are logged in
// full; the client only sees the safe message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	appErr, ok := apperr.As(err)
	if !ok {
		log.Error("unhandled error", zap.Error(err))
		respondMessage(w, r, http.StatusInternalServerError, msgInternal)
		return
	}

	status := statusFor(appErr.Kind)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("kind", appErr.Kind.String()), zap.Error(err))
		msg := appErr.Message
		if msg == "" {
			msg = msgInternal
		}
		respondMessage(w, r, status, msg)
		return
	}

	fields := []zap.Field{zap.String("kind", appErr.Kind.String()), zap.String("mensagem", appErr.Message)}
	if appErr.ProductID != 0 {
		fields = append(fields, zap.Int64("product_id", appErr.ProductID))
	}
	if appErr.Kind == apperr.KindInsufficientStock {
		fields = append(fields, zap.Int("available", appErr.Available), zap.Int("requested", appErr.Requested))
	}
	log.Info("request rejected", fields...)

	respondMessage(w, r, status, appErr.Message)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("Corpo da requisição inválido.")
	}
	return nil
}
