package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"machinery-assistant/internal/models"
)

type contextKey string

const (
	SessionIDKey contextKey = "session_id"
	SettingsKey  contextKey = "session_settings"
)

// SessionClaims carries a chat session's settings. The mode inside was
// resolved when the token was issued and is trusted as-is afterwards.
type SessionClaims struct {
	Settings models.SessionSettings `json:"settings"`
	jwt.RegisteredClaims
}

type JWTAuth struct {
	Secret []byte
	TTL    time.Duration
}

func NewJWTAuth(secret string, ttl time.Duration) *JWTAuth {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTAuth{Secret: []byte(secret), TTL: ttl}
}

// GenerateSessionToken signs the session id and its current settings.
func (j *JWTAuth) GenerateSessionToken(sessionID uuid.UUID, settings models.SessionSettings) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Settings: settings,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

func (j *JWTAuth) parseClaims(tokenStr string) (*SessionClaims, uuid.UUID, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	})
	if err != nil {
		return nil, uuid.Nil, err
	}
	if !token.Valid {
		return nil, uuid.Nil, jwt.ErrTokenInvalidClaims
	}

	sessionID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, uuid.Nil, jwt.ErrTokenInvalidSubject
	}
	return claims, sessionID, nil
}

// ParseSessionToken verifies a token and returns its session id.
func (j *JWTAuth) ParseSessionToken(tokenStr string) (uuid.UUID, error) {
	_, sessionID, err := j.parseClaims(tokenStr)
	return sessionID, err
}

// Middleware validates the session token and attaches the session id and
// settings to the request context.
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
			return
		}

		claims, sessionID, err := j.parseClaims(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Session has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid session token", r)
			}
			return
		}
		if !claims.Settings.Mode.Valid() {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid session settings", r)
			return
		}

		ctx := context.WithValue(r.Context(), SessionIDKey, sessionID)
		ctx = context.WithValue(ctx, SettingsKey, claims.Settings)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionID extracts the session id from request context.
func GetSessionID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(SessionIDKey).(uuid.UUID)
	return id
}

// GetSettings extracts the session settings from request context.
func GetSettings(ctx context.Context) (models.SessionSettings, bool) {
	s, ok := ctx.Value(SettingsKey).(models.SessionSettings)
	return s, ok
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: GetRequestID(r.Context()),
		},
	})
}
