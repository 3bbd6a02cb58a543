package repo_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donor-registry/internal/domain"
	"donor-registry/internal/repo"
	"donor-registry/internal/testutil"
)

var day = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func rec(name, serial string, st domain.SampleType, at time.Time) *domain.DonorRecord {
	return &domain.DonorRecord{Name: name, SampleType: st, Serial: serial, Available: true, CreatedAt: at, UpdatedAt: at}
}

func TestUserRepo(t *testing.T) {
	r := repo.NewUserRepo(testutil.NewDB(t))
	ctx := context.Background()

	u := &domain.User{Username: "clerk", PasswordHash: "x", Authority: domain.AuthorityCreate}
	require.NoError(t, r.Create(ctx, u))
	require.NotZero(t, u.ID)

	err := r.Create(ctx, &domain.User{Username: "clerk", PasswordHash: "y"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	_, err = r.FindByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, r.UpdateAuthority(ctx, u.ID, domain.AuthorityAdmin))
	got, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AuthorityAdmin, got.Authority)

	assert.ErrorIs(t, r.UpdateAuthority(ctx, 999, domain.AuthorityRead), domain.ErrNotFound)

	require.NoError(t, r.Create(ctx, &domain.User{Username: "viewer", PasswordHash: "z"}))
	list, total, err := r.List(ctx, 0, 10, "VIEW")
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "viewer", list[0].Username)
}

func TestUserRepo_FindByUsername_CaseSensitive(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CaseInsensitiveUsers(t, db)
	r := repo.NewUserRepo(db)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &domain.User{Username: "admin", PasswordHash: "x", Authority: domain.AuthorityAdmin}))

	// 排序规则本身认为两者相等
	var n int64
	require.NoError(t, db.Model(&domain.User{}).Where("username = ?", "ADMIN").Count(&n).Error)
	require.EqualValues(t, 1, n)

	_, err := r.FindByUsername(ctx, "ADMIN")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := r.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)
}

func TestDonorRepo_SearchByField_EscapesWildcards(t *testing.T) {
	r := repo.NewDonorRepo(testutil.NewDB(t))
	ctx := context.Background()

	for i, name := range []string{"Li Lei", "Wang Fang", "Zhao 50%", "a_b", "x!y"} {
		serial := fmt.Sprintf("20240115_BM_%03d", i+1)
		require.NoError(t, r.Create(ctx, rec(name, serial, domain.SampleMarrow, day)))
	}

	names := func(keyword string) []string {
		t.Helper()
		found, err := r.SearchByField(ctx, domain.FieldName, keyword)
		require.NoError(t, err)
		out := make([]string, 0, len(found))
		for _, d := range found {
			out = append(out, d.Name)
		}
		return out
	}

	assert.Equal(t, []string{"a_b"}, names("_"))
	assert.Equal(t, []string{"Zhao 50%"}, names("%"))
	assert.Equal(t, []string{"Zhao 50%"}, names("0%"))
	assert.Equal(t, []string{"x!y"}, names("!"))
	assert.Equal(t, []string{"Li Lei"}, names("I l"))
	// 序列号里的 _ 同样按字面匹配
	found, err := r.SearchByField(ctx, domain.FieldSerial, "5_bm_00")
	require.NoError(t, err)
	assert.Len(t, found, 5)
	found, err = r.SearchByField(ctx, domain.FieldSerial, "2024011_")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDonorRepo_FindByField_Age(t *testing.T) {
	r := repo.NewDonorRepo(testutil.NewDB(t))
	ctx := context.Background()

	d := rec("Li Na", "20240115_BM_001", domain.SampleMarrow, day)
	d.Age = 42
	require.NoError(t, r.Create(ctx, d))

	found, err := r.FindByField(ctx, domain.FieldAge, 42)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Li Na", found[0].Name)
}

func TestDonorRepo_Queries(t *testing.T) {
	r := repo.NewDonorRepo(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, rec("Li Na", "20240115_BM_001", domain.SampleMarrow, day)))
	require.NoError(t, r.Create(ctx, rec("OLIVER", "20240115_PB_002", domain.SamplePeripheralBlood, day.Add(time.Hour))))
	require.NoError(t, r.Create(ctx, rec("Wang Fang", "20240116_BM_001", domain.SampleMarrow, day.AddDate(0, 0, 1))))

	err := r.Create(ctx, rec("dup", "20240115_BM_001", domain.SampleMarrow, day))
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	found, err := r.SearchByField(ctx, domain.FieldName, "li")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Li Na", found[0].Name)
	assert.Equal(t, "OLIVER", found[1].Name)

	found, err = r.FindByField(ctx, domain.FieldSampleType, "marrow")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = r.FindByCreatedRange(ctx, day, day.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Li Na", found[0].Name)

	n, err := r.CountCreatedOn(ctx, day, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	n, err = r.CountCreatedOn(ctx, day, domain.SampleMarrow)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	items, total, err := r.Page(ctx, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, items, 2)

	_, err = r.FindByID(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, r.SetAvailable(ctx, 999, false), domain.ErrNotFound)
}

func TestDonorRepo_CreateWithSerial_RollsBackCounter(t *testing.T) {
	db := testutil.NewDB(t)
	r := repo.NewDonorRepo(db)
	ctx := context.Background()

	// 前一天的记录占用了今天会分到的流水号
	require.NoError(t, r.Create(ctx, rec("old", "20240115_BM_001", domain.SampleMarrow, day.AddDate(0, 0, -1))))

	slot := domain.SerialSlot{Key: "20240115", Day: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}
	d := rec("new", "", domain.SampleMarrow, day)
	err := r.CreateWithSerial(ctx, d, slot, func(sameDay int64) error {
		assert.EqualValues(t, 0, sameDay)
		d.Serial = "20240115_BM_001"
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	var counters int64
	require.NoError(t, db.Model(&domain.SerialCounter{}).Count(&counters).Error)
	assert.Zero(t, counters)
}

func TestDonorRepo_CreateWithSerial_AssignError(t *testing.T) {
	r := repo.NewDonorRepo(testutil.NewDB(t))
	slot := domain.SerialSlot{Key: "20240115", Day: day}
	boom := errors.Join(domain.ErrValidation, errors.New("bad type"))

	err := r.CreateWithSerial(context.Background(), rec("x", "", "saliva", day), slot, func(int64) error { return boom })
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NotErrorIs(t, err, domain.ErrPersistence)
}

func TestDonorRepo_CreateWithSerial_Consecutive(t *testing.T) {
	r := repo.NewDonorRepo(testutil.NewDB(t))
	ctx := context.Background()
	slot := domain.SerialSlot{Key: "20240115", Day: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}

	var seen []int64
	for i := 0; i < 3; i++ {
		d := rec("n", "", domain.SampleMarrow, day)
		require.NoError(t, r.CreateWithSerial(ctx, d, slot, func(sameDay int64) error {
			seen = append(seen, sameDay)
			d.Serial = fmt.Sprintf("s%d", sameDay)
			return nil
		}))
	}
	assert.Equal(t, []int64{0, 1, 2}, seen)
}

func TestDonorRepo_CreateWithSerial_CounterBehindRecords(t *testing.T) {
	db := testutil.NewDB(t)
	r := repo.NewDonorRepo(db)
	ctx := context.Background()
	slot := domain.SerialSlot{Key: "20240115", Day: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}

	// 计数行停在 1，之后 2 条记录由外部计数器发号写入
	require.NoError(t, db.Create(&domain.SerialCounter{Key: slot.Key, Value: 1}).Error)
	for i := 1; i <= 3; i++ {
		require.NoError(t, r.Create(ctx, rec("n", fmt.Sprintf("20240115_BM_%03d", i), domain.SampleMarrow, day)))
	}

	d := rec("next", "", domain.SampleMarrow, day)
	require.NoError(t, r.CreateWithSerial(ctx, d, slot, func(sameDay int64) error {
		assert.EqualValues(t, 3, sameDay)
		d.Serial = "20240115_BM_004"
		return nil
	}))

	var ctr domain.SerialCounter
	require.NoError(t, db.First(&ctr, "counter_key = ?", slot.Key).Error)
	assert.EqualValues(t, 4, ctr.Value)
}
