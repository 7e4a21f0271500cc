package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Identity is the verified caller. It is resolved once per request by the
// Gate and handed to protected handlers explicitly.
type Identity struct {
	UserID int64
	Email  string
}

// Verifier turns a request into an Identity. Bearer tokens are the only
// scheme today; sessions or API keys would be further implementations.
type Verifier interface {
	Verify(r *http.Request) (Identity, error)
}

var ErrMissingCredentials = errors.New("missing credentials")

type BearerVerifier struct {
	Tokens *TokenIssuer
}

func (v BearerVerifier) Verify(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Identity{}, ErrMissingCredentials
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return Identity{}, ErrInvalidToken
	}

	return v.Tokens.Parse(strings.TrimSpace(token))
}

// HandlerFunc is an http handler that requires a verified caller.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, id Identity)

type Gate struct {
	verifier Verifier
	deny     func(w http.ResponseWriter, r *http.Request, err error)
}

// NewGate builds a Gate; deny writes the 401 response.
func NewGate(verifier Verifier, deny func(w http.ResponseWriter, r *http.Request, err error)) *Gate {
	return &Gate{verifier: verifier, deny: deny}
}

func (g *Gate) Protect(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := g.verifier.Verify(r)
		if err != nil {
			g.deny(w, r, err)
			return
		}
		h(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)), id)
	}
}

type identityKey struct{}

// FromContext exposes the identity to middleware that sits behind Protect
// but does not receive it as a parameter.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
