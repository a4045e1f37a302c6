package app_dir

import (
	"os"
	"path/filepath"
	"runtime"
)

// CacheDir returns the default cache root for transformed modules, honoring
// the `MAPLOAD_CACHE_DIR` and `XDG_CACHE_HOME` environment overrides before
// falling back to the platform convention.
func CacheDir() (string, error) {
	if dir := os.Getenv("MAPLOAD_CACHE_DIR"); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "mapload"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library/Caches/mapload"), nil
	case "windows":
		if dir := os.Getenv("LocalAppData"); dir != "" {
			return filepath.Join(dir, "mapload"), nil
		}
		return filepath.Join(homeDir, "AppData\\Local\\mapload"), nil
	default:
		return filepath.Join(homeDir, ".cache/mapload"), nil
	}
}
