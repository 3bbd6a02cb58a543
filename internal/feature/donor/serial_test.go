package donor

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donor-registry/internal/domain"
)

var serialPattern = regexp.MustCompile(`^\d{8}_(BM|PB|CB|UC|X)_\d{3}$`)

func jan15() time.Time { return time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC) }

func TestAllocateSerial_Format(t *testing.T) {
	want := map[domain.SampleType]string{
		domain.SampleMarrow:          "20240115_BM_001",
		domain.SamplePeripheralBlood: "20240115_PB_001",
		domain.SampleCordBlood:       "20240115_CB_001",
		domain.SampleUmbilicalCord:   "20240115_UC_001",
		domain.SampleOtherTissue:     "20240115_X_001",
	}
	for _, st := range domain.SampleTypes() {
		got, err := AllocateSerial(st, jan15(), 0)
		require.NoError(t, err, st)
		assert.Regexp(t, serialPattern, got)
		assert.Equal(t, want[st], got)
	}
}

func TestAllocateSerial_MarrowFourthOfDay(t *testing.T) {
	got, err := AllocateSerial(domain.SampleMarrow, jan15(), 3)
	require.NoError(t, err)
	assert.Equal(t, "20240115_BM_004", got)
}

func TestAllocateSerial_Pure(t *testing.T) {
	a, err := AllocateSerial(domain.SampleCordBlood, jan15(), 41)
	require.NoError(t, err)
	b, err := AllocateSerial(domain.SampleCordBlood, jan15(), 41)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "20240115_CB_042", a)
}

func TestAllocateSerial_WidensPast999(t *testing.T) {
	got, err := AllocateSerial(domain.SampleMarrow, jan15(), 999)
	require.NoError(t, err)
	assert.Equal(t, "20240115_BM_1000", got)
}

func TestAllocateSerial_UnknownType(t *testing.T) {
	_, err := AllocateSerial(domain.SampleType("saliva"), jan15(), 0)
	require.ErrorIs(t, err, domain.ErrUnknownSampleType)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestAllocateSerial_NegativeCount(t *testing.T) {
	_, err := AllocateSerial(domain.SampleMarrow, jan15(), -1)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestSlotFor(t *testing.T) {
	day := SlotFor(domain.ScopeDay, domain.SampleMarrow, jan15())
	assert.Equal(t, "20240115", day.Key)
	assert.Equal(t, domain.SampleType(""), day.Type)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), day.Day)

	typed := SlotFor(domain.ScopeDayType, domain.SampleUmbilicalCord, jan15())
	assert.Equal(t, "20240115_UC", typed.Key)
	assert.Equal(t, domain.SampleUmbilicalCord, typed.Type)
}
