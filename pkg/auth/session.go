package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie carrying the dashboard session token.
const SessionCookie = "orbicheck_session"

// SessionTTL bounds a session's lifetime.
const SessionTTL = 12 * time.Hour

// SessionClaims are the JWT claims carried by a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	ProjectID string `json:"project_id"`
}

// SessionManager signs and validates session tokens with the shared
// SESSION_SECRET.
type SessionManager struct {
	secret []byte
}

// NewSessionManager creates a manager; an empty secret disables sessions.
func NewSessionManager(secret string) *SessionManager {
	if secret == "" {
		return nil
	}
	return &SessionManager{secret: []byte(secret)}
}

// Issue mints a session token for a user bound to a project.
func (m *SessionManager) Issue(userID, projectID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
		ProjectID: projectID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign session: %w", err)
	}
	return signed, nil
}

// Validate parses and validates a session token string.
func (m *SessionManager) Validate(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: invalid token")
	}
	return claims, nil
}

// FromCookie resolves a session Principal from the request cookie, if present.
func (m *SessionManager) FromCookie(r *http.Request) (*Principal, error) {
	if m == nil {
		return nil, nil
	}
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	claims, err := m.Validate(cookie.Value)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("auth: session missing subject")
	}
	return &Principal{
		ProjectID: claims.ProjectID,
		UserID:    claims.Subject,
		Method:    MethodSession,
	}, nil
}
