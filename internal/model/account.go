package model

import "time"

// Role enumerates account roles. Accounts live in a single directory table,
// so a username resolves to exactly one (role, id) pair — there is no
// cross-table probe order to worry about.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleExaminer Role = "EXAMINER"
	RoleProctor  Role = "PROCTOR"
	RoleStudent  Role = "STUDENT"
)

// Account represents a user of any role.
type Account struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LoginRequest is the payload for authentication, any role.
type LoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	Account      Account `json:"account"`
}

// CreateAccountRequest is the payload for creating an account.
type CreateAccountRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Role     string `json:"role" binding:"required,oneof=ADMIN EXAMINER PROCTOR STUDENT"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}
