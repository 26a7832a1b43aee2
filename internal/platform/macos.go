package platform

import "path/filepath"

// getMacOSInfo returns platform-specific information for macOS
func getMacOSInfo(homeDir, username string, _ func(string) string) *Info {
	return &Info{
		OS:       MacOS,
		HomeDir:  homeDir,
		Username: username,
		TrashDirs: []string{
			filepath.Join(homeDir, ".Trash"),
		},
		CacheDirs: []string{
			filepath.Join(homeDir, "Library/Caches"),
		},
		TempDirs: []string{
			"/private/tmp",
			"/private/var/tmp",
		},
		DownloadsDir: filepath.Join(homeDir, "Downloads"),
		ToolCaches: []string{
			filepath.Join(homeDir, ".npm/_cacache"),
			filepath.Join(homeDir, ".yarn/cache"),
			filepath.Join(homeDir, ".cargo/registry/cache"),
			filepath.Join(homeDir, ".gradle/caches"),
			filepath.Join(homeDir, "Library/Developer/Xcode/DerivedData"),
			filepath.Join(homeDir, "Library/Developer/CoreSimulator/Caches"),
		},
	}
}
