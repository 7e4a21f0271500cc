package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/go-pdv/internal/auth"
	"github.com/safar/go-pdv/internal/logger"
	"go.uber.org/zap"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	maxKeyLength = 255
)

// Middleware must sit behind auth.Gate.Protect: keys are scoped per user,
// so two users sending the same key never see each other's responses.
// Requests without the header, or without an identity, pass through.
// A Redis outage also passes through with a warning.
func Middleware(store *Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(HeaderKey)
			id, ok := auth.FromContext(r.Context())
			if clientKey == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}

			log := logger.FromContext(r.Context())

			if len(clientKey) > maxKeyLength {
				writeMessage(w, http.StatusBadRequest, "Idempotency-Key muito longa.")
				return
			}

			key := scopedKey(id.UserID, clientKey)
			rec, err := store.Reserve(r.Context(), key)
			switch {
			case errors.Is(err, ErrInFlight):
				writeMessage(w, http.StatusConflict, "Uma requisição com esta Idempotency-Key ainda está em andamento.")
				return
			case err != nil:
				log.Warn("idempotency store unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			case rec != nil:
				replay(w, rec)
				return
			}

			defer func() {
				if p := recover(); p != nil {
					store.Release(context.WithoutCancel(r.Context()), key)
					panic(p)
				}
			}()

			var body bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)

			next.ServeHTTP(ww, r)

			// Bookkeeping outlives a disconnected client.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
			defer cancel()

			result := Record{
				Status:      ww.Status(),
				ContentType: ww.Header().Get("Content-Type"),
				Body:        body.Bytes(),
			}
			if result.successful() {
				if err := store.Complete(ctx, key, result); err != nil {
					log.Warn("failed to store idempotent response", zap.Error(err))
				}
				return
			}
			if err := store.Release(ctx, key); err != nil {
				log.Warn("failed to release idempotency key", zap.Error(err))
			}
		})
	}
}

func scopedKey(userID int64, clientKey string) string {
	return strconv.FormatInt(userID, 10) + ":" + clientKey
}

func replay(w http.ResponseWriter, rec *Record) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(HeaderReplayed, "true")
	w.WriteHeader(rec.Status)
	w.Write(rec.Body)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"mensagem": msg})
}
