package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/repository"
)

var ErrUsernameTaken = errors.New("username is already taken")

// AccountService manages the account directory.
type AccountService struct {
	accountRepo *repository.AccountRepository
	bcryptCost  int
	log         zerolog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(accountRepo *repository.AccountRepository, bcryptCost int, log zerolog.Logger) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		bcryptCost:  bcryptCost,
		log:         log.With().Str("component", "account_service").Logger(),
	}
}

// Create registers a new account of any role. Usernames are unique across
// all roles so a login lookup resolves to exactly one account.
func (s *AccountService) Create(ctx context.Context, req *model.CreateAccountRequest) (*model.Account, error) {
	existing, err := s.accountRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &model.Account{
		Username:     req.Username,
		Name:         req.Name,
		Role:         model.Role(req.Role),
		PasswordHash: string(hash),
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.log.Info().Str("username", account.Username).Str("role", req.Role).Msg("account created")
	return account, nil
}

// ListByRole pages through accounts of one role.
func (s *AccountService) ListByRole(ctx context.Context, role model.Role, page, perPage int) ([]model.Account, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.accountRepo.ListByRole(ctx, role, perPage, (page-1)*perPage)
}
