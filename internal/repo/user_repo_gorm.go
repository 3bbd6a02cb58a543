package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"donor-registry/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	return wrapErr(r.db.WithContext(ctx).Create(u).Error)
}

func (r *UserRepo) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &u, nil
}

// FindByUsername 精确匹配，区分大小写。
// MySQL 默认 *_ci 排序规则下 "ADMIN" = "admin"（尾部空格也会被忽略），查出后再逐字节比对一次。
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).First(&u, "username = ?", username).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	if u.Username != username {
		return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context, offset, limit int, q string) ([]domain.User, int64, error) {
	var users []domain.User
	tx := r.db.WithContext(ctx).Model(&domain.User{})
	if s := strings.TrimSpace(q); s != "" {
		tx = tx.Where("username LIKE ?", "%"+s+"%")
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	if err := tx.Offset(offset).Limit(limit).Order("id asc").Find(&users).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	return users, total, nil
}

func (r *UserRepo) UpdateAuthority(ctx context.Context, id uint, a domain.Authority) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("authority", a)
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

var _ domain.UserRepository = (*UserRepo)(nil)

// wrapErr 把 gorm/驱动错误归类到 domain 错误
func wrapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isDupKey(err):
		return fmt.Errorf("%w: %w", domain.ErrDuplicate, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
}

func isDupKey(err error) bool {
	// 未开启 TranslateError 时，按驱动报错文本兜底
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "duplicate key")
}
