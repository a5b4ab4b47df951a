package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/model"
)

var (
	ErrMissingToken  = errors.New("missing access token")
	ErrInvalidViewer = errors.New("token subject is not a viewer id")
)

// Authenticator resolves the viewer of an upgrade request from an HS256 token. The token
// subject carries the numeric viewer id.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(secret string, issuer string) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Authenticator{secret: []byte(secret), parser: jwt.NewParser(opts...)}
}

func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (a *Authenticator) Viewer(r *http.Request) (model.ViewerID, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return 0, ErrMissingToken
	}
	claims := &jwt.RegisteredClaims{}
	token, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("error occured while validating token: %w", err)
	}
	if !token.Valid {
		return 0, jwt.ErrTokenSignatureInvalid
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidViewer, claims.Subject)
	}
	return model.ViewerID(id), nil
}
