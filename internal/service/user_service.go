package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/AdityaGahukar/PingWave/internal/audit"
	"github.com/AdityaGahukar/PingWave/internal/domain"
	"github.com/AdityaGahukar/PingWave/internal/mailer"
	"github.com/AdityaGahukar/PingWave/internal/repository"
	"github.com/AdityaGahukar/PingWave/pkg/jwt"
	"github.com/AdityaGahukar/PingWave/pkg/log"
)

type userServiceImpl struct {
	repo   repository.UserRepository
	tokens *jwt.Manager
	mail   mailer.Mailer
}

// NewUserService creates the auth service.
func NewUserService(repo repository.UserRepository, tokens *jwt.Manager, mail mailer.Mailer) UserService {
	return &userServiceImpl{
		repo:   repo,
		tokens: tokens,
		mail:   mail,
	}
}

// Signup registers a new user and issues its first session token.
func (s *userServiceImpl) Signup(ctx context.Context, req *domain.SignupRequest) (*AuthResult, error) {
	l := log.Ctx(ctx)

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		l.Error().Err(err).Msg("failed to hash password")
		return nil, err
	}

	user := &domain.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(hashed),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		l.Error().Err(err).Msg("failed to create user")
		return nil, err
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to generate token after signup")
		return nil, err
	}

	// Welcome email is best-effort; signup never fails on it.
	if err := s.mail.SendWelcome(ctx, user.Email, user.FullName); err != nil {
		l.Warn().Err(err).Str(log.FieldUserID, user.ID).Msg("welcome email failed")
	}

	audit.Log(ctx, audit.ActionSignup, user.ID, "user signed up")

	return &AuthResult{User: user.ToResponse(), Token: token}, nil
}

// Login authenticates a user and issues a fresh session token.
func (s *userServiceImpl) Login(ctx context.Context, req *domain.LoginRequest) (*AuthResult, error) {
	l := log.Ctx(ctx)

	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			audit.LogWithDetail(ctx, audit.ActionLoginFailed, "", req.Email, "login failed: user not found")
			return nil, ErrInvalidCredentials
		}
		l.Error().Err(err).Msg("failed to get user by email")
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		audit.LogWithDetail(ctx, audit.ActionLoginFailed, user.ID, req.Email, "login failed: wrong password")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to generate token after login")
		return nil, err
	}

	audit.Log(ctx, audit.ActionLogin, user.ID, "user logged in")

	return &AuthResult{User: user.ToResponse(), Token: token}, nil
}
