package utils

import (
	"os"
	"path/filepath"
)

// GetCacheDir 返回 krx2db 的缓存目录，sub 为子目录名
func GetCacheDir(sub string) (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}

	appDir := filepath.Join(base, "krx2db", sub)
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", err
	}

	return appDir, nil
}
