package model

// User is the signed-in identity carried in the session cookie.
// There is no user table; the identity provider is the source of truth.
type User struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Picture  string `json:"picture"`
	Provider string `json:"-"` // "google" or "dev"
}
