package service

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/templui/imagevault/internal/model"
)

const SessionCookieName = "imagevault.auth"

var (
	ErrInvalidSession = errors.New("invalid session")
)

// Session is a verified session cookie.
type Session struct {
	User      *model.User
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type sessionClaims struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Picture  string `json:"picture,omitempty"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

// AuthService issues and verifies the signed session cookie. Sessions are
// stateless HS256 tokens; there is no server-side session store.
type AuthService struct {
	secret []byte
	expiry time.Duration
	secure bool
	now    func() time.Time
}

func NewAuthService(secret string, expiry time.Duration, secure bool) *AuthService {
	return &AuthService{
		secret: []byte(secret),
		expiry: expiry,
		secure: secure,
		now:    time.Now,
	}
}

// DevUser is the identity signed in by the development login.
func DevUser() *model.User {
	return &model.User{
		Name:     "Dev User",
		Email:    "dev@example.com",
		Provider: "dev",
	}
}

func (s *AuthService) IssueSession(user *model.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiry)

	claims := sessionClaims{
		Name:     user.Name,
		Email:    user.Email,
		Picture:  user.Picture,
		Provider: user.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session: %w", err)
	}

	return tokenString, expiresAt, nil
}

func (s *AuthService) VerifySession(tokenString string) (*Session, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if !token.Valid || claims.IssuedAt == nil {
		return nil, ErrInvalidSession
	}

	return &Session{
		User: &model.User{
			Name:     claims.Name,
			Email:    claims.Email,
			Picture:  claims.Picture,
			Provider: claims.Provider,
		},
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// NeedsRefresh reports whether more than half of the session lifetime has
// elapsed. Such sessions are reissued so active users stay signed in.
func (s *AuthService) NeedsRefresh(session *Session) bool {
	lifetime := session.ExpiresAt.Sub(session.IssuedAt)
	return s.now().Sub(session.IssuedAt) > lifetime/2
}

// SignIn issues a session for user and sets the cookie.
func (s *AuthService) SignIn(w http.ResponseWriter, user *model.User) error {
	token, expiresAt, err := s.IssueSession(user)
	if err != nil {
		return err
	}
	s.SetSessionCookie(w, token, expiresAt)
	return nil
}

func (s *AuthService) SetSessionCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
