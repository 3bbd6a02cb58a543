package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"donor-registry/internal/domain"
)

type DonorRepo struct{ db *gorm.DB }

func NewDonorRepo(db *gorm.DB) *DonorRepo { return &DonorRepo{db: db} }

// Models 需要自动迁移的全部模型
func Models() []any {
	return []any{&domain.User{}, &domain.DonorRecord{}, &domain.SerialCounter{}}
}

func (r *DonorRepo) Create(ctx context.Context, d *domain.DonorRecord) error {
	return wrapErr(r.db.WithContext(ctx).Create(d).Error)
}

// CreateWithSerial 在同一事务里：锁定计数行 → 发号 → 写入记录 → 计数 +1。
// 计数行不存在时用当日已有记录数初始化；计数落后于已有记录数（期间走过外部计数器）时以记录数为准。
func (r *DonorRepo) CreateWithSerial(ctx context.Context, d *domain.DonorRecord, slot domain.SerialSlot, assign func(sameDay int64) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ctr, err := lockCounter(tx, slot)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			seed := domain.SerialCounter{Key: slot.Key}
			if e := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; e != nil {
				return e
			}
			ctr, err = lockCounter(tx, slot)
		}
		if err != nil {
			return err
		}
		n, err := countCreatedOn(tx, slot.Day, slot.Type)
		if err != nil {
			return err
		}
		issued := max(ctr.Value, n)

		if err := assign(issued); err != nil {
			return err
		}
		if err := tx.Create(d).Error; err != nil {
			return err
		}
		return tx.Model(&domain.SerialCounter{}).
			Where("counter_key = ?", slot.Key).
			Update("issued", issued+1).Error
	})
	if err == nil {
		return nil
	}
	// assign 返回的业务错误原样透出
	if errors.Is(err, domain.ErrValidation) {
		return err
	}
	return wrapErr(err)
}

func lockCounter(tx *gorm.DB, slot domain.SerialSlot) (domain.SerialCounter, error) {
	var c domain.SerialCounter
	err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("counter_key = ?", slot.Key).
		First(&c).Error
	return c, err
}

func (r *DonorRepo) All(ctx context.Context) ([]domain.DonorRecord, error) {
	var out []domain.DonorRecord
	err := r.db.WithContext(ctx).Order("id asc").Find(&out).Error
	return out, wrapErr(err)
}

func (r *DonorRepo) Page(ctx context.Context, offset, limit int) ([]domain.DonorRecord, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.DonorRecord{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	var out []domain.DonorRecord
	if err := q.Order("id desc").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, wrapErr(err)
	}
	return out, total, nil
}

func (r *DonorRepo) FindByID(ctx context.Context, id uint) (*domain.DonorRecord, error) {
	var d domain.DonorRecord
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, wrapErr(err)
	}
	return &d, nil
}

func (r *DonorRepo) FindByField(ctx context.Context, f domain.QueryField, value any) ([]domain.DonorRecord, error) {
	var out []domain.DonorRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Name: f.Column()}, Value: value},
		}}).
		Order("id asc").
		Find(&out).Error
	return out, wrapErr(err)
}

// SearchByField 大小写不敏感的子串匹配，各驱动统一用 LOWER(col) LIKE。
// 关键字里的 % _ 按字面匹配。
func (r *DonorRepo) SearchByField(ctx context.Context, f domain.QueryField, keyword string) ([]domain.DonorRecord, error) {
	var out []domain.DonorRecord
	like := "%" + escapeLike(strings.ToLower(keyword)) + "%"
	err := r.db.WithContext(ctx).
		Clauses(clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "LOWER(?) LIKE ? ESCAPE '" + likeEscape + "'", Vars: []any{clause.Column{Name: f.Column()}, like}},
		}}).
		Order("id asc").
		Find(&out).Error
	return out, wrapErr(err)
}

// 不用反斜杠：MySQL 字符串字面量里 '\' 本身要转义
const likeEscape = "!"

var likeReplacer = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

func escapeLike(s string) string { return likeReplacer.Replace(s) }

// FindByCreatedRange 左闭右开 [from, to)
func (r *DonorRepo) FindByCreatedRange(ctx context.Context, from, to time.Time) ([]domain.DonorRecord, error) {
	var out []domain.DonorRecord
	err := r.db.WithContext(ctx).
		Where("create_time >= ? AND create_time < ?", from, to).
		Order("create_time asc").
		Find(&out).Error
	return out, wrapErr(err)
}

func (r *DonorRepo) CountCreatedOn(ctx context.Context, day time.Time, t domain.SampleType) (int64, error) {
	n, err := countCreatedOn(r.db.WithContext(ctx), day, t)
	return n, wrapErr(err)
}

func countCreatedOn(db *gorm.DB, day time.Time, t domain.SampleType) (int64, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	q := db.Model(&domain.DonorRecord{}).
		Where("create_time >= ? AND create_time < ?", start, start.AddDate(0, 0, 1))
	if t != "" {
		q = q.Where("sample_type = ?", t)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func (r *DonorRepo) SetAvailable(ctx context.Context, id uint, available bool) error {
	res := r.db.WithContext(ctx).Model(&domain.DonorRecord{}).Where("id = ?", id).Update("available", available)
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("donor record %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

var _ domain.DonorRepository = (*DonorRepo)(nil)
