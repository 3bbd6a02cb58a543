package donor

import (
	"fmt"
	"time"

	"donor-registry/internal/domain"
)

const serialDateLayout = "20060102"

// AllocateSerial 生成流水号 <YYYYMMDD>_<CODE>_<序号>，序号 = sameDayCount+1，至少 3 位补零。
// 纯函数：同样的输入总是得到同样的输出。
func AllocateSerial(t domain.SampleType, ref time.Time, sameDayCount int64) (string, error) {
	code, err := t.Code()
	if err != nil {
		return "", err
	}
	if sameDayCount < 0 {
		return "", fmt.Errorf("%w: negative same-day count %d", domain.ErrValidation, sameDayCount)
	}
	return fmt.Sprintf("%s_%s_%03d", ref.Format(serialDateLayout), code, sameDayCount+1), nil
}

// SlotFor 计数槽：按日，或按日+类型
func SlotFor(scope domain.SerialScope, t domain.SampleType, ref time.Time) domain.SerialSlot {
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	slot := domain.SerialSlot{Key: day.Format(serialDateLayout), Day: day}
	if scope == domain.ScopeDayType {
		code, _ := t.Code()
		slot.Key += "_" + code
		slot.Type = t
	}
	return slot
}
