package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"banking/internal/domain"
	"banking/internal/money"
	"banking/internal/repository/accounts_repo"
	"banking/internal/token"
	"banking/internal/util"
)

type Service interface {
	Register(ctx context.Context, email, password string) (*domain.Account, error)
	Authenticate(ctx context.Context, email, password string) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (*domain.TokenPair, error)
	Refresh(ctx context.Context, email, refreshToken string) (*domain.TokenPair, error)
	LookupAccount(ctx context.Context, email string) (*domain.Account, error)
}

type authService struct {
	db          *sql.DB
	accountRepo accounts_repo.AccountRepository
	refresh     RefreshTokenStore
	hasher      PasswordHasher
	codec       *token.Codec
	accessTTL   time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

func NewService(
	db *sql.DB,
	accountRepo accounts_repo.AccountRepository,
	refresh RefreshTokenStore,
	hasher PasswordHasher,
	codec *token.Codec,
	accessTTL time.Duration,
	logger *zap.Logger,
) Service {
	return &authService{
		db:          db,
		accountRepo: accountRepo,
		refresh:     refresh,
		hasher:      hasher,
		codec:       codec,
		accessTTL:   accessTTL,
		now:         time.Now,
		logger:      logger,
	}
}

func (s *authService) Register(ctx context.Context, email, password string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)

	exists, err := s.accountRepo.ExistsByEmail(ctx, s.db, email)
	if err != nil {
		return nil, domain.Transient("check identity", err)
	}
	if exists {
		s.logger.Info("Registration rejected, email already taken", zap.String("email", email))
		return nil, domain.ErrIdentityConflict
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &domain.Account{
		ID:           util.GenerateUUID(),
		Email:        email,
		PasswordHash: hash,
		Balance:      money.Zero,
		Roles:        domain.DefaultRoles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accountRepo.CreateAccountTx(ctx, s.db, account); err != nil {
		if errors.Is(err, domain.ErrIdentityConflict) {
			s.logger.Info("Registration lost race for email", zap.String("email", email))
			return nil, err
		}
		return nil, domain.Transient("create account", err)
	}

	s.logger.Info("Account registered", zap.String("account_id", account.ID), zap.String("email", email))
	return account, nil
}

func (s *authService) Authenticate(ctx context.Context, email, password string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)

	account, err := s.accountRepo.GetByEmail(ctx, s.db, email)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, domain.Transient("load account", err)
	}
	if err := s.hasher.Verify(account.PasswordHash, password); err != nil {
		if errors.Is(err, domain.ErrBadCredentials) {
			s.logger.Info("Authentication failed", zap.String("email", email))
		}
		return nil, err
	}
	return account, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	account, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	pair, err := s.issuePair(ctx, account)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Login succeeded", zap.String("account_id", account.ID))
	return pair, nil
}

func (s *authService) Refresh(ctx context.Context, email, refreshToken string) (*domain.TokenPair, error) {
	email = domain.NormalizeEmail(email)

	rotated, err := s.refresh.Redeem(ctx, email, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			s.logger.Info("Refresh token rejected", zap.String("email", email), zap.Error(err))
		}
		return nil, err
	}

	access, _, err := s.codec.Issue(rotated.Email, token.AudienceAccess, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: rotated.Token,
		Email:        rotated.Email,
	}, nil
}

func (s *authService) LookupAccount(ctx context.Context, email string) (*domain.Account, error) {
	account, err := s.accountRepo.GetByEmail(ctx, s.db, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, domain.Transient("load account", err)
	}
	return account, nil
}

func (s *authService) issuePair(ctx context.Context, account *domain.Account) (*domain.TokenPair, error) {
	access, _, err := s.codec.Issue(account.Email, token.AudienceAccess, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.refresh.IssueFor(ctx, account)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		Email:        account.Email,
	}, nil
}
