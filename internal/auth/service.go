package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/go-pdv/internal/apperr"
	"github.com/safar/go-pdv/internal/database"
	"github.com/safar/go-pdv/internal/models"
	"github.com/safar/go-pdv/internal/store"
)

const msgInvalidCredentials = "Credenciais inválidas."

type Service struct {
	db     database.Querier
	tokens *TokenIssuer
}

func NewService(db database.Querier, tokens *TokenIssuer) *Service {
	return &Service{db: db, tokens: tokens}
}

func (s *Service) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, apperr.Validation("Por favor, preencha todos os campos.")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	return store.CreateUser(ctx, s.db, name, email, hash)
}

// Login checks credentials and issues a token. Unknown email and wrong
// password produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, apperr.Validation("Por favor, preencha todos os campos.")
	}

	user, err := store.GetUserByEmail(ctx, s.db, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil, apperr.Validation(msgInvalidCredentials)
		}
		return "", nil, err
	}

	if !CheckPassword(user.PasswordHash, password) {
		return "", nil, apperr.Validation(msgInvalidCredentials)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", nil, fmt.Errorf("login: %w", err)
	}

	return token, user, nil
}

func (s *Service) Profile(ctx context.Context, id Identity) (*models.User, error) {
	return store.GetUser(ctx, s.db, id.UserID)
}
