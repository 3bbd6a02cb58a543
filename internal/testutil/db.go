// Package testutil 测试共用的内存库
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"donor-registry/internal/core/database"
	"donor-registry/internal/repo"
)

// NewDB 单连接的内存 SQLite，已建表；测试结束自动关闭
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.NewGorm(database.Opts{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, repo.Models()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CaseInsensitiveUsers 把 users.username 换成 NOCASE 排序规则，
// 模拟 MySQL 默认 *_ci 排序规则下的比较行为
func CaseInsensitiveUsers(t testing.TB, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec("DROP TABLE users").Error)
	require.NoError(t, db.Exec(`CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL COLLATE NOCASE UNIQUE,
	password_hash TEXT NOT NULL,
	authority INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME,
	updated_at DATETIME
)`).Error)
}
