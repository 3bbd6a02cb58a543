package domain

import (
	"context"
	"fmt"
	"time"
)

// SampleType 采样类型（固定枚举）
type SampleType string

const (
	SampleMarrow          SampleType = "marrow"
	SamplePeripheralBlood SampleType = "peripheral-blood"
	SampleCordBlood       SampleType = "cord-blood"
	SampleUmbilicalCord   SampleType = "umbilical-cord"
	SampleOtherTissue     SampleType = "other-tissue"
)

var sampleCodes = map[SampleType]string{
	SampleMarrow:          "BM",
	SamplePeripheralBlood: "PB",
	SampleCordBlood:       "CB",
	SampleUmbilicalCord:   "UC",
	SampleOtherTissue:     "X",
}

// SampleTypes 按固定顺序返回全部类型
func SampleTypes() []SampleType {
	return []SampleType{SampleMarrow, SamplePeripheralBlood, SampleCordBlood, SampleUmbilicalCord, SampleOtherTissue}
}

// Code 返回流水号中使用的类型缩写
func (t SampleType) Code() (string, error) {
	code, ok := sampleCodes[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSampleType, string(t))
	}
	return code, nil
}

// DonorRecord 供者 + 样本信息
type DonorRecord struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string     `gorm:"size:64;index" json:"name"`
	Age            int        `json:"age"`
	Gender         string     `gorm:"size:16" json:"gender"`
	IDNum          string     `gorm:"column:id_num;size:32;index" json:"id_num"`
	Phone          string     `gorm:"size:32" json:"phone"`
	Place          string     `gorm:"size:128" json:"place"`
	SampleType     SampleType `gorm:"size:32;not null" json:"sample_type"`
	SampleQuantity string     `gorm:"size:32" json:"sample_quantity"`
	Date           string     `gorm:"column:date;size:10" json:"date"` // 采样日期 YYYY-MM-DD
	Serial         string     `gorm:"uniqueIndex;size:32;not null;<-:create" json:"serial"`
	Available      bool       `gorm:"not null" json:"available"`
	CreatedAt      time.Time  `gorm:"column:create_time;autoCreateTime;index" json:"create_time"`
	UpdatedAt      time.Time  `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

func (DonorRecord) TableName() string { return "donor_records" }

// SerialCounter 每个流水号作用域（日 或 日+类型）的已发号数
type SerialCounter struct {
	Key   string `gorm:"column:counter_key;primaryKey;size:32"`
	Value int64  `gorm:"column:issued;not null"`
}

func (SerialCounter) TableName() string { return "serial_counters" }

// QueryField 允许查询的字段，替代按名字动态取列
type QueryField string

const (
	FieldName           QueryField = "name"
	FieldAge            QueryField = "age"
	FieldGender         QueryField = "gender"
	FieldIDNum          QueryField = "id_num"
	FieldPhone          QueryField = "phone"
	FieldPlace          QueryField = "place"
	FieldSampleType     QueryField = "sample_type"
	FieldSampleQuantity QueryField = "sample_quantity"
	FieldDate           QueryField = "date"
	FieldSerial         QueryField = "serial"
)

var fieldColumns = map[QueryField]string{
	FieldName:           "name",
	FieldAge:            "age",
	FieldGender:         "gender",
	FieldIDNum:          "id_num",
	FieldPhone:          "phone",
	FieldPlace:          "place",
	FieldSampleType:     "sample_type",
	FieldSampleQuantity: "sample_quantity",
	FieldDate:           "date",
	FieldSerial:         "serial",
}

// ParseQueryField 未知字段返回 ErrUnknownField
func ParseQueryField(s string) (QueryField, error) {
	f := QueryField(s)
	if _, ok := fieldColumns[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
	}
	return f, nil
}

// Column 对应的数据库列名
func (f QueryField) Column() string { return fieldColumns[f] }

// SerialScope 当日计数是否按样本类型区分
type SerialScope string

const (
	ScopeDay     SerialScope = "day"
	ScopeDayType SerialScope = "day_type"
)

// SerialSlot 一次发号所属的计数槽；Type 为空表示全天合计
type SerialSlot struct {
	Key  string
	Day  time.Time
	Type SampleType
}

type DonorRepository interface {
	Create(ctx context.Context, d *DonorRecord) error
	CreateWithSerial(ctx context.Context, d *DonorRecord, slot SerialSlot, assign func(sameDay int64) error) error
	All(ctx context.Context) ([]DonorRecord, error)
	Page(ctx context.Context, offset, limit int) ([]DonorRecord, int64, error)
	FindByID(ctx context.Context, id uint) (*DonorRecord, error)
	FindByField(ctx context.Context, f QueryField, value any) ([]DonorRecord, error)
	SearchByField(ctx context.Context, f QueryField, keyword string) ([]DonorRecord, error)
	FindByCreatedRange(ctx context.Context, from, to time.Time) ([]DonorRecord, error)
	CountCreatedOn(ctx context.Context, day time.Time, t SampleType) (int64, error)
	SetAvailable(ctx context.Context, id uint, available bool) error
}
