package model

import "time"

// User represents a user in the database. Users are keyed by email and
// created on their first completed login.
type User struct {
	Email          string
	Name           string
	X              float64
	Y              float64
	CreatedAt      time.Time
	LastReceivedAt *time.Time
}

// Distance is the Manhattan distance between the coordinates of u and other.
func (u *User) Distance(other *User) float64 {
	return abs(u.X-other.X) + abs(u.Y-other.Y)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// PendingLogin is an outstanding one-time secret key for an email.
type PendingLogin struct {
	Email      string
	SecretHash string
	IssuedAt   time.Time
}

// AccessToken binds a bearer token (stored as a digest) to a user.
type AccessToken struct {
	Digest   string
	Email    string
	IssuedAt time.Time
}

// LoginRequest represents both steps of the login flow. Without a secret_key
// field it opens a login; with one, even an empty one, it completes it.
type LoginRequest struct {
	Email     string  `json:"email"`
	SecretKey *string `json:"secret_key,omitempty"`
}

// LoginResponse represents the result of either login step.
type LoginResponse struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
}

// RenameRequest represents a display name change.
type RenameRequest struct {
	Name string `json:"name"`
}

// UserResponse represents user data safe for API responses.
type UserResponse struct {
	Status   string `json:"status"`
	Username string `json:"username"`
}
