package rpc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const jwtLeeway = 30 * time.Second

// requireAuth validates the HS256 bearer token carried by r.
func (s *Server) requireAuth(r *http.Request) *RPCError {
	unauthorized := func(message string) *RPCError {
		return &RPCError{HTTPStatus: http.StatusUnauthorized, Code: codeUnauthorized, Message: message}
	}
	if s.cfg.JWTSecret == "" {
		return unauthorized("RPC authentication secret not configured")
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return unauthorized("missing Authorization header")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return unauthorized("Authorization header must use Bearer scheme")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return unauthorized("missing bearer token")
	}
	if _, err := s.parseToken(token); err != nil {
		s.logger.Debug("bearer token rejected", "error", err)
		return unauthorized("invalid RPC credentials")
	}
	return nil
}

func (s *Server) parseToken(raw string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(jwtLeeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not map")
	}
	return claims, nil
}

// IssueToken signs an HS256 token valid for ttl. Operators use it to mint
// submission credentials for trusted frontends.
func IssueToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("secret required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
