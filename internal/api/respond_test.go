package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/safar/go-pdv/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindValidation, http.StatusBadRequest},
		{apperr.KindReference, http.StatusBadRequest},
		{apperr.KindInsufficientStock, http.StatusBadRequest},
		{apperr.KindConflict, http.StatusBadRequest},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindUnauthorized, http.StatusUnauthorized},
		{apperr.KindPersistence, http.StatusInternalServerError},
		{apperr.KindUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.kind))
		})
	}
}

func TestRespondErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(rec, req, apperr.Persistence("Erro ao cadastrar pedido.", errors.New("pq: password authentication failed")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"mensagem":"Erro ao cadastrar pedido."}`, rec.Body.String())
}

func TestRespondErrorUnknown(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(rec, req, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"mensagem":"`+msgInternal+`"}`, rec.Body.String())
}
