package service

import (
	"context"
	"errors"

	"github.com/AdityaGahukar/PingWave/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already exists")
)

// AuthResult is the outcome of signup/login: the user plus the session
// token the handler turns into a cookie.
type AuthResult struct {
	User  domain.UserResponse
	Token string
}

// UserService is the auth surface: account creation and credential
// verification. Everything token-shaped beyond issuance lives in the
// validator.
type UserService interface {
	Signup(ctx context.Context, req *domain.SignupRequest) (*AuthResult, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*AuthResult, error)
}
