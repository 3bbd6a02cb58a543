package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"donor-registry/internal/core/auth"
	"donor-registry/internal/domain"
	"donor-registry/pkg/utils"
)

// Token 登录结果
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service 认证 + 用户管理。
//
// 权限模型是有序等级：Authorize 只比较 user.Authority >= required，
// 1 查看、2 录入、4 管理用户，高等级自动具备低等级能力。
type Service struct {
	repo  domain.UserRepository
	jwter *auth.JWTer
	log   *zap.Logger
}

func NewService(repo domain.UserRepository, jwter *auth.JWTer, l *zap.Logger) *Service {
	if l == nil {
		l = zap.NewNop()
	}
	return &Service{repo: repo, jwter: jwter, log: l}
}

// Authenticate 用户不存在与密码错误返回同一个 ErrAuthFailure
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	u, err := s.repo.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		utils.BurnCheck(password)
		return nil, domain.ErrAuthFailure
	case err != nil:
		return nil, err
	}
	if !utils.CheckPassword(password, u.PasswordHash) {
		return nil, domain.ErrAuthFailure
	}
	return u, nil
}

func (s *Service) IssueToken(u *domain.User) (Token, error) {
	tok, exp, err := s.jwter.Issue(u.Username)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: tok, TokenType: "bearer", ExpiresAt: exp}, nil
}

// Login = Authenticate + IssueToken
func (s *Service) Login(ctx context.Context, username, password string) (Token, *domain.User, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return Token{}, nil, err
	}
	t, err := s.IssueToken(u)
	if err != nil {
		return Token{}, nil, err
	}
	return t, u, nil
}

// ResolveToken 签名/过期失败 → ErrInvalidCredential；sub 查不到用户 → ErrUnknownUser
func (s *Service) ResolveToken(ctx context.Context, token string) (*domain.User, error) {
	c, err := s.jwter.Parse(token)
	if err != nil {
		if auth.IsExpired(err) {
			s.log.Debug("token expired")
		}
		return nil, err
	}
	u, err := s.repo.FindByUsername(ctx, c.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownUser, c.Subject)
	}
	return u, err
}

// Authorize 纯比较
func Authorize(u *domain.User, required domain.Authority) bool {
	return u != nil && u.Authority.Allows(required)
}

func (s *Service) Create(ctx context.Context, username, password string, a domain.Authority) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > 128 {
		return nil, fmt.Errorf("%w: username must be 1-128 characters", domain.ErrValidation)
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", domain.ErrValidation)
	}
	if !a.Valid() {
		return nil, fmt.Errorf("%w: authority must be between 0 and 4", domain.ErrValidation)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	u := &domain.User{Username: username, PasswordHash: hash, Authority: a}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user created", zap.String("username", u.Username), zap.Int("authority", int(a)))
	return u, nil
}

func (s *Service) List(ctx context.Context, offset, limit int, q string) ([]domain.User, int64, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, offset, limit, q)
}

func (s *Service) Get(ctx context.Context, id uint) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) ChangeAuthority(ctx context.Context, id uint, a domain.Authority) (*domain.User, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: authority must be between 0 and 4", domain.ErrValidation)
	}
	if err := s.repo.UpdateAuthority(ctx, id, a); err != nil {
		return nil, err
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info("authority changed", zap.String("username", u.Username), zap.Int("authority", int(a)))
	return u, nil
}
