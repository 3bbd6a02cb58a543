package utils

import "golang.org/x/crypto/bcrypt"

// dummyHash 用于用户不存在时也走一次 bcrypt 比较，使两种失败耗时接近
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("donor-registry/dummy"), bcrypt.DefaultCost)

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(pw, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
}

// BurnCheck 对固定哈希做一次比较，结果丢弃
func BurnCheck(pw string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(pw))
}
