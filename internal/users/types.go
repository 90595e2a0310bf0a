// Package users stores password accounts and exchanges credentials for
// signed bearer tokens.
package users

import (
	"strings"
	"time"

	"github.com/imrishuroy/go-storefront/internal/auth"
)

// User is a password account. E-mail is the table key, so at most one
// account exists per address.
type User struct {
	Email        string    `dynamodbav:"email" json:"email"`
	UserID       string    `dynamodbav:"user_id" json:"id"`
	Name         string    `dynamodbav:"name" json:"name"`
	Phone        string    `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	Role         string    `dynamodbav:"role" json:"role"`
	PasswordHash string    `dynamodbav:"password_hash" json:"-"`
	CreatedAt    time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt    time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// Identity is the caller identity carried in the user's tokens.
func (u *User) Identity() auth.Identity {
	return auth.Identity{
		UserID: u.UserID,
		Role:   u.Role,
		Name:   u.Name,
		Email:  u.Email,
		Phone:  u.Phone,
	}
}

// Session is returned by signup and login.
type Session struct {
	Token string        `json:"token"`
	User  auth.Identity `json:"user"`
}

// SignupInput carries a new account's details.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
