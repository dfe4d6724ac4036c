package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"banking/internal/domain"
	"banking/internal/repository/refresh_tokens_repo"
	"banking/internal/token"
)

// RefreshTokenStore keeps exactly one active refresh token per account and
// rotates it on every successful redeem.
type RefreshTokenStore interface {
	IssueFor(ctx context.Context, account *domain.Account) (*domain.RefreshToken, error)
	Redeem(ctx context.Context, claimedEmail, presented string) (*domain.RefreshToken, error)
}

type refreshTokenStore struct {
	db     *sql.DB
	repo   refresh_tokens_repo.RefreshTokenRepository
	codec  *token.Codec
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewRefreshTokenStore(
	db *sql.DB,
	repo refresh_tokens_repo.RefreshTokenRepository,
	codec *token.Codec,
	ttl time.Duration,
	logger *zap.Logger,
) RefreshTokenStore {
	return &refreshTokenStore{
		db:     db,
		repo:   repo,
		codec:  codec,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// IssueFor mints a new refresh token and makes it the account's only one.
func (s *refreshTokenStore) IssueFor(ctx context.Context, account *domain.Account) (*domain.RefreshToken, error) {
	raw, expiresAt, err := s.codec.Issue(account.Email, token.AudienceRefresh, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	record := &domain.RefreshToken{
		AccountID: account.ID,
		Email:     account.Email,
		Token:     raw,
		ExpiresAt: expiresAt,
		CreatedAt: s.now(),
	}
	if err := s.repo.UpsertTx(ctx, s.db, record); err != nil {
		return nil, domain.Transient("store refresh token", err)
	}
	s.logger.Debug("Refresh token issued", zap.String("account_id", account.ID))
	return record, nil
}

// Redeem validates presented for claimedEmail and swaps it for a fresh
// token. Any rejection leaves the stored token untouched.
func (s *refreshTokenStore) Redeem(ctx context.Context, claimedEmail, presented string) (*domain.RefreshToken, error) {
	claims, err := s.codec.Verify(presented, token.AudienceRefresh)
	if err != nil {
		return nil, err
	}
	if claims.Subject != claimedEmail {
		return nil, fmt.Errorf("%w: token subject does not match", domain.ErrTokenInvalid)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Transient("begin refresh rotation", err)
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered panic during refresh rotation, rolling back", zap.Any("panic", r))
			_ = tx.Rollback()
			panic(r)
		}
	}()

	rotated, err := s.redeemTx(ctx, tx, claimedEmail, presented)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back refresh rotation", zap.Error(rbErr))
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.Transient("commit refresh rotation", err)
	}

	s.logger.Debug("Refresh token rotated", zap.String("account_id", rotated.AccountID))
	return rotated, nil
}

func (s *refreshTokenStore) redeemTx(ctx context.Context, tx *sql.Tx, claimedEmail, presented string) (*domain.RefreshToken, error) {
	record, err := s.repo.GetByToken(ctx, tx, presented)
	if err != nil {
		return nil, domain.Transient("load refresh token", err)
	}
	if record.Email != claimedEmail {
		return nil, fmt.Errorf("%w: token belongs to another account", domain.ErrTokenInvalid)
	}
	now := s.now()
	if record.Expired(now) {
		return nil, fmt.Errorf("%w: refresh token expired", domain.ErrTokenInvalid)
	}

	raw, expiresAt, err := s.codec.Issue(record.Email, token.AudienceRefresh, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	swapped, err := s.repo.RotateTx(ctx, tx, record.AccountID, presented, raw, expiresAt, now)
	if err != nil {
		return nil, domain.Transient("rotate refresh token", err)
	}
	if !swapped {
		return nil, fmt.Errorf("%w: refresh token already used", domain.ErrTokenInvalid)
	}

	return &domain.RefreshToken{
		AccountID: record.AccountID,
		Email:     record.Email,
		Token:     raw,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}
