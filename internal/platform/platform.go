package platform

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/fenilsonani/duster/internal/scanner"
)

// Platform represents the operating system platform
type Platform string

const (
	MacOS   Platform = "darwin"
	Linux   Platform = "linux"
	Unknown Platform = "unknown"
)

// Info contains platform-specific information and paths
type Info struct {
	OS           Platform
	HomeDir      string
	Username     string
	TrashDirs    []string
	CacheDirs    []string
	TempDirs     []string
	DownloadsDir string
	// ToolCaches are package manager caches living outside CacheDirs
	ToolCaches []string
}

// Detect returns the current platform
func Detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	default:
		return Unknown
	}
}

// GetInfo returns platform-specific information for the current user
func GetInfo() (*Info, error) {
	currentUser, err := user.Current()
	if err != nil {
		return nil, err
	}
	return InfoFor(Detect(), currentUser.HomeDir, currentUser.Username, os.Getenv)
}

// InfoFor builds the platform information for an explicit platform, home
// directory and environment
func InfoFor(p Platform, homeDir, username string, getenv func(string) string) (*Info, error) {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	var info *Info
	switch p {
	case MacOS:
		info = getMacOSInfo(homeDir, username, getenv)
	case Linux:
		info = getLinuxInfo(homeDir, username, getenv)
	default:
		return nil, ErrUnsupportedPlatform
	}

	if tmp := getenv("TMPDIR"); tmp != "" {
		info.TempDirs = appendUnique(info.TempDirs, filepath.Clean(tmp))
	}
	return info, nil
}

// Locations returns the well-known roots used by the location categories.
// extraCaches are added to the cache roots.
func (i *Info) Locations(extraCaches ...string) scanner.Locations {
	caches := append([]string(nil), i.CacheDirs...)
	for _, c := range append(append([]string(nil), i.ToolCaches...), extraCaches...) {
		caches = appendUnique(caches, c)
	}

	var downloads []string
	if i.DownloadsDir != "" {
		downloads = []string{i.DownloadsDir}
	}

	return scanner.Locations{
		Trash:     append([]string(nil), i.TrashDirs...),
		Cache:     caches,
		Temp:      append([]string(nil), i.TempDirs...),
		Downloads: downloads,
	}
}

// ProtectedRoots lists the directories that must survive a clean even
// though their contents are cleanable
func (i *Info) ProtectedRoots(extraCaches ...string) []string {
	loc := i.Locations(extraCaches...)
	roots := []string{i.HomeDir}
	if i.DownloadsDir != "" {
		roots = append(roots, i.DownloadsDir)
	}
	for _, group := range [][]string{loc.Trash, loc.Cache, loc.Temp} {
		for _, r := range group {
			roots = appendUnique(roots, r)
		}
	}
	return roots
}

// GetUserConfigDir returns the user's config directory
func GetUserConfigDir() (string, error) {
	if Detect() == Linux {
		if configDir := os.Getenv("XDG_CONFIG_HOME"); configDir != "" {
			return configDir, nil
		}
	}
	return os.UserConfigDir()
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// Errors
var (
	ErrUnsupportedPlatform = &PlatformError{"unsupported platform"}
)

// PlatformError represents a platform-related error
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}
