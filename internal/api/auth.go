package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"medsales/m/domain"
	"medsales/m/internal/session"
	"medsales/m/internal/store"
)

type authClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// principal is the caller behind a valid session id.
type principal struct {
	Username string
	Role     string
}

func (h *Handler) generateToken(username, role string) (string, error) {
	now := h.now()
	claims := authClaims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

// authenticate resolves a session id. Any failure is reported as an invalid
// session so the client logs out.
func (h *Handler) authenticate(sessionID string) (principal, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return principal{}, errSessionInvalid
	}
	token, err := jwt.ParseWithClaims(sessionID, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(h.secret), nil
	}, jwt.WithTimeFunc(h.now))
	if err != nil || !token.Valid {
		return principal{}, errSessionInvalid
	}
	claims, ok := token.Claims.(*authClaims)
	if !ok || claims.Username == "" {
		return principal{}, errSessionInvalid
	}
	return principal{Username: claims.Username, Role: claims.Role}, nil
}

// authorizeManager is authenticate plus the inventory management role check.
func (h *Handler) authorizeManager(sessionID string) (principal, error) {
	p, err := h.authenticate(sessionID)
	if err != nil {
		return p, err
	}
	if !session.CanManageInventory(p.Role) {
		return p, badRequest("You do not have permission to perform this action.")
	}
	return p, nil
}

func (h *Handler) validateUser(ctx context.Context, data json.RawMessage) (any, error) {
	var req domain.LoginRequest
	if err := decodeData(data, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return domain.LoginResult{Success: false, Message: "Username and password are required."}, nil
	}
	user, err := h.store.UserByUsername(ctx, req.Username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResult{Success: false, Message: "Invalid credentials"}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		h.log.Info("rejected login", zap.String("username", user.Username))
		return domain.LoginResult{Success: false, Message: "Invalid credentials"}, nil
	}
	token, err := h.generateToken(user.Username, user.Role)
	if err != nil {
		return nil, err
	}
	h.log.Info("user logged in", zap.String("username", user.Username), zap.String("role", user.Role))
	return domain.LoginResult{Success: true, Role: user.Role, SessionID: token}, nil
}
