package donor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"donor-registry/internal/core/mq"
	"donor-registry/internal/domain"
)

var createdTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "donor_records_created_total", Help: "Count of donor records created"},
	[]string{"sample_type"},
)

func init() { prometheus.MustRegister(createdTotal) }

const dateLayout = "2006-01-02"

// Sequencer 外部原子计数器（如 Redis INCR），返回自增后的值。
// 计数不存在（首次使用、被清空）时用 seed 的返回值初始化。
type Sequencer interface {
	Next(ctx context.Context, key string, seed func(context.Context) (int64, error)) (int64, error)
}

type Options struct {
	Scope     domain.SerialScope
	Sequencer Sequencer    // 为空则在数据库事务里发号
	Publisher mq.Publisher // 为空不发事件
	Queue     string
	Now       func() time.Time
	Logger    *zap.Logger
}

type Service struct {
	repo  domain.DonorRepository
	seq   Sequencer
	pub   mq.Publisher
	queue string
	scope domain.SerialScope
	now   func() time.Time
	log   *zap.Logger
}

func NewService(repo domain.DonorRepository, o Options) *Service {
	s := &Service{
		repo:  repo,
		seq:   o.Sequencer,
		pub:   o.Publisher,
		queue: o.Queue,
		scope: o.Scope,
		now:   o.Now,
		log:   o.Logger,
	}
	if s.scope != domain.ScopeDayType {
		s.scope = domain.ScopeDay
	}
	if s.pub == nil {
		s.pub = mq.Noop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Create 校验 → 发号 → 写入。流水号一经分配不再修改。
func (s *Service) Create(ctx context.Context, in domain.DonorRecord) (*domain.DonorRecord, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	now := s.now()
	rec := in
	rec.ID = 0
	rec.Serial = ""
	rec.CreatedAt = now
	rec.UpdatedAt = now

	slot := SlotFor(s.scope, rec.SampleType, now)
	if s.seq != nil {
		n, err := s.seq.Next(ctx, slot.Key, func(ctx context.Context) (int64, error) {
			return s.repo.CountCreatedOn(ctx, slot.Day, slot.Type)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: serial counter: %v", domain.ErrPersistence, err)
		}
		if rec.Serial, err = AllocateSerial(rec.SampleType, now, n-1); err != nil {
			return nil, err
		}
		if err := s.repo.Create(ctx, &rec); err != nil {
			return nil, err
		}
	} else {
		err := s.repo.CreateWithSerial(ctx, &rec, slot, func(sameDay int64) error {
			serial, err := AllocateSerial(rec.SampleType, now, sameDay)
			if err != nil {
				return err
			}
			rec.Serial = serial
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	createdTotal.WithLabelValues(string(rec.SampleType)).Inc()
	s.log.Info("donor record created",
		zap.Uint("id", rec.ID),
		zap.String("serial", rec.Serial),
		zap.String("sample_type", string(rec.SampleType)),
	)
	s.publishCreated(ctx, &rec)
	return &rec, nil
}

type createdEvent struct {
	ID         uint      `json:"id"`
	Serial     string    `json:"serial"`
	SampleType string    `json:"sample_type"`
	CreateTime time.Time `json:"create_time"`
}

// publishCreated 失败只记日志，不影响已落库的记录
func (s *Service) publishCreated(ctx context.Context, rec *domain.DonorRecord) {
	if s.queue == "" {
		return
	}
	body, err := json.Marshal(createdEvent{
		ID: rec.ID, Serial: rec.Serial, SampleType: string(rec.SampleType), CreateTime: rec.CreatedAt,
	})
	if err != nil {
		s.log.Warn("marshal donor event failed", zap.Error(err))
		return
	}
	if err := s.pub.Publish(ctx, s.queue, body, map[string]string{"event": "donor.created"}); err != nil {
		s.log.Warn("publish donor event failed", zap.String("serial", rec.Serial), zap.Error(err))
	}
}

func validate(d *domain.DonorRecord) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if _, err := d.SampleType.Code(); err != nil {
		return err
	}
	if d.Age < 0 || d.Age > 150 {
		return fmt.Errorf("%w: age out of range", domain.ErrValidation)
	}
	if d.Date != "" {
		if _, err := time.Parse(dateLayout, d.Date); err != nil {
			return fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrValidation)
		}
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]domain.DonorRecord, error) {
	return s.repo.All(ctx)
}

// Page page 从 1 开始；size 超出 (0,100] 时回落到 20
func (s *Service) Page(ctx context.Context, page, size int) ([]domain.DonorRecord, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return s.repo.Page(ctx, (page-1)*size, size)
}

func (s *Service) Get(ctx context.Context, id uint) (*domain.DonorRecord, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) FindByField(ctx context.Context, field, value string) ([]domain.DonorRecord, error) {
	f, err := domain.ParseQueryField(field)
	if err != nil {
		return nil, err
	}
	if f == domain.FieldAge {
		// 整数列，字符串参数在 Postgres 上会直接报错
		age, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%w: age must be an integer", domain.ErrValidation)
		}
		return s.repo.FindByField(ctx, f, age)
	}
	return s.repo.FindByField(ctx, f, value)
}

// Fuzzy 对单个字段做大小写不敏感的子串匹配
func (s *Service) Fuzzy(ctx context.Context, field, keyword string) ([]domain.DonorRecord, error) {
	f, err := domain.ParseQueryField(field)
	if err != nil {
		return nil, err
	}
	if f == domain.FieldAge {
		return nil, fmt.Errorf("%w: age does not support fuzzy match", domain.ErrValidation)
	}
	if strings.TrimSpace(keyword) == "" {
		return nil, fmt.Errorf("%w: keyword is required", domain.ErrValidation)
	}
	return s.repo.SearchByField(ctx, f, keyword)
}

// Range 按创建时间查询。YYYY-MM-DD 形式的 end 包含当天整天；RFC3339 形式按精确时刻（不含）。
func (s *Service) Range(ctx context.Context, start, end string) ([]domain.DonorRecord, error) {
	loc := s.now().Location()
	from, err := parseBound(start, false, loc)
	if err != nil {
		return nil, err
	}
	to, err := parseBound(end, true, loc)
	if err != nil {
		return nil, err
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: start must be before end", domain.ErrValidation)
	}
	return s.repo.FindByCreatedRange(ctx, from, to)
}

func parseBound(s string, end bool, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		if end {
			return d.AddDate(0, 0, 1), nil
		}
		return d, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", domain.ErrValidation, s)
}

// TodayCount 当天已创建的记录总数（不区分类型）
func (s *Service) TodayCount(ctx context.Context) (int64, error) {
	return s.repo.CountCreatedOn(ctx, s.now(), "")
}

func (s *Service) SetAvailable(ctx context.Context, id uint, available bool) (*domain.DonorRecord, error) {
	if err := s.repo.SetAvailable(ctx, id, available); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}
