package platform

import "path/filepath"

// getLinuxInfo returns platform-specific information for Linux, honoring
// the XDG base directory variables
func getLinuxInfo(homeDir, username string, getenv func(string) string) *Info {
	dataHome := getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(homeDir, ".local/share")
	}
	cacheHome := getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		cacheHome = filepath.Join(homeDir, ".cache")
	}
	downloads := getenv("XDG_DOWNLOAD_DIR")
	if downloads == "" {
		downloads = filepath.Join(homeDir, "Downloads")
	}

	return &Info{
		OS:       Linux,
		HomeDir:  homeDir,
		Username: username,
		TrashDirs: []string{
			filepath.Join(dataHome, "Trash/files"),
		},
		CacheDirs: []string{
			cacheHome,
		},
		TempDirs: []string{
			"/tmp",
			"/var/tmp",
		},
		DownloadsDir: downloads,
		ToolCaches: []string{
			filepath.Join(homeDir, ".npm/_cacache"),
			filepath.Join(homeDir, ".yarn/cache"),
			filepath.Join(homeDir, ".cargo/registry/cache"),
			filepath.Join(homeDir, ".gradle/caches"),
		},
	}
}
