package api

import (
	"net/http"

	"github.com/safar/go-pdv/internal/apperr"
	"github.com/safar/go-pdv/internal/auth"
	"github.com/safar/go-pdv/internal/models"
	"github.com/safar/go-pdv/internal/store"
)

type registerRequest struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Password string `json:"senha"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

type loginResponse struct {
	Message string       `json:"mensagem"`
	Token   string       `json:"token"`
	User    *models.User `json:"usuario"`
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if _, err := h.users.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
		respondError(w, r, err)
		return
	}

	respondMessage(w, r, http.StatusCreated, "Usuário cadastrado com sucesso.")
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	token, user, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, loginResponse{
		Message: "Login efetuado com sucesso.",
		Token:   token,
		User:    user,
	})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	user, err := h.users.Profile(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, user)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	categories, err := store.ListCategories(r.Context(), h.db)
	if err != nil {
		respondError(w, r, apperr.Persistence("Erro ao listar categorias.", err))
		return
	}
	respondJSON(w, r, http.StatusOK, categories)
}
