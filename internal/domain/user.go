package domain

import (
	"context"
	"time"
)

// Authority 是有序的权限等级：高等级包含低等级的全部能力。
type Authority int

const (
	AuthorityNone   Authority = 0
	AuthorityRead   Authority = 1 // 查看敏感记录
	AuthorityCreate Authority = 2 // 录入/修改记录
	AuthorityAdmin  Authority = 4 // 管理用户
)

// Allows 判断是否满足最低权限要求（>= 比较，不按位）
func (a Authority) Allows(required Authority) bool { return a >= required }

func (a Authority) Valid() bool { return a >= AuthorityNone && a <= AuthorityAdmin }

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:128;not null" json:"username"`
	PasswordHash string    `gorm:"size:100;not null" json:"-"`
	Authority    Authority `gorm:"not null;default:0" json:"authority"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id uint) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, offset, limit int, q string) ([]User, int64, error)
	UpdateAuthority(ctx context.Context, id uint, a Authority) error
}
