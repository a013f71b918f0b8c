package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	osWindows = "windows"
	osDarwin  = "darwin"
	osAndroid = "android"

	appName    = "sonora"
	appDirName = "Sonora"
)

// RootEnvVar is the one environment variable the store wrapper honors to
// override the engine's persisted-state root directory.
const RootEnvVar = "SONORA_ROOT"

// Root resolves the store's root directory: SONORA_ROOT if set, otherwise
// the platform data directory.
func Root() (string, error) {
	if root := os.Getenv(RootEnvVar); root != "" {
		return root, nil
	}
	return GetDataDir()
}

// GetDataDir returns the platform-specific data directory.
func GetDataDir() (string, error) {
	switch runtime.GOOS {
	case osWindows:
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appDirName), nil
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming", appDirName), nil
	case osDarwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", appDirName), nil
	case osAndroid:
		if androidData := os.Getenv("ANDROID_DATA"); androidData != "" {
			return filepath.Join(androidData, "data", "org.sonora.player", "files"), nil
		}
		return "/data/data/org.sonora.player/files", nil
	default:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, appName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", appName), nil
	}
}

// GetCacheDir returns the platform-specific cache directory.
func GetCacheDir() (string, error) {
	switch runtime.GOOS {
	case osWindows:
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appDirName, "Cache"), nil
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local", appDirName, "Cache"), nil
	case osDarwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Caches", appDirName), nil
	case osAndroid:
		if androidData := os.Getenv("ANDROID_DATA"); androidData != "" {
			return filepath.Join(androidData, "data", "org.sonora.player", "cache"), nil
		}
		return "/data/data/org.sonora.player/cache", nil
	default:
		if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
			return filepath.Join(xdgCache, appName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".cache", appName), nil
	}
}

// GetConfigDir returns the platform-specific configuration directory.
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case osWindows:
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appDirName), nil
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming", appDirName), nil
	case osDarwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Preferences", appDirName), nil
	case osAndroid:
		if androidData := os.Getenv("ANDROID_DATA"); androidData != "" {
			return filepath.Join(androidData, "data", "org.sonora.player", "files"), nil
		}
		return "/data/data/org.sonora.player/files", nil
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, appName), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", appName), nil
	}
}
