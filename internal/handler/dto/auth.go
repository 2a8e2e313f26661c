// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/authgate/authgate/internal/model"
)

// RegisterRequest represents the request body for creating a user.
type RegisterRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// LoginRequest represents the request body for credential login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse represents issued token material.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// UserResponse represents a user identity in API responses.
// It never carries the password hash.
type UserResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	IsActive  bool       `json:"is_active"`
	Access    bool       `json:"access"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// ToUserResponse maps an identity to its API representation.
func ToUserResponse(identity *model.Identity) UserResponse {
	return UserResponse{
		ID:        identity.ID.String(),
		Email:     identity.Email,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		IsActive:  identity.IsActive,
		Access:    identity.Access,
		CreatedAt: identity.CreatedAt,
		UpdatedAt: identity.UpdatedAt,
		DeletedAt: identity.DeletedAt,
	}
}
