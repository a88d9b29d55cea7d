package util

import (
	"github.com/pion/randutil"
)

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandString 生成长度为n的加密安全随机字符串
func RandString(n int) string {
	s, err := randutil.GenerateCryptoRandomString(n, letters)
	if err != nil {
		panic(err)
	}
	return s
}
