package platform

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDetect(t *testing.T) {
	switch runtime.GOOS {
	case "darwin":
		assert.Equal(t, MacOS, Detect())
	case "linux":
		assert.Equal(t, Linux, Detect())
	default:
		assert.Equal(t, Unknown, Detect())
	}
}

func TestLinuxLocations(t *testing.T) {
	info, err := InfoFor(Linux, "/home/ana", "ana", env(nil))
	require.NoError(t, err)

	loc := info.Locations()
	assert.Equal(t, []string{"/home/ana/.local/share/Trash/files"}, loc.Trash)
	assert.Equal(t, "/home/ana/.cache", loc.Cache[0])
	assert.Contains(t, loc.Cache, "/home/ana/.gradle/caches")
	assert.Equal(t, []string{"/tmp", "/var/tmp"}, loc.Temp)
	assert.Equal(t, []string{"/home/ana/Downloads"}, loc.Downloads)
}

func TestLinuxHonorsXDG(t *testing.T) {
	info, err := InfoFor(Linux, "/home/ana", "ana", env(map[string]string{
		"XDG_DATA_HOME":    "/data",
		"XDG_CACHE_HOME":   "/fast/cache",
		"XDG_DOWNLOAD_DIR": "/home/ana/dl",
		"TMPDIR":           "/scratch/",
	}))
	require.NoError(t, err)

	loc := info.Locations()
	assert.Equal(t, []string{"/data/Trash/files"}, loc.Trash)
	assert.Equal(t, "/fast/cache", loc.Cache[0])
	assert.Equal(t, []string{"/home/ana/dl"}, loc.Downloads)
	assert.Equal(t, []string{"/tmp", "/var/tmp", "/scratch"}, loc.Temp)
}

func TestMacOSLocations(t *testing.T) {
	info, err := InfoFor(MacOS, "/Users/ana", "ana", env(map[string]string{
		"TMPDIR": "/var/folders/xy/T",
	}))
	require.NoError(t, err)

	loc := info.Locations("/Users/ana/extra-cache")
	assert.Equal(t, []string{"/Users/ana/.Trash"}, loc.Trash)
	assert.Equal(t, "/Users/ana/Library/Caches", loc.Cache[0])
	assert.Contains(t, loc.Cache, "/Users/ana/extra-cache")
	assert.Contains(t, loc.Temp, "/var/folders/xy/T")
	assert.Equal(t, []string{"/Users/ana/Downloads"}, loc.Downloads)
}

func TestLocationsDeduplicateExtraCaches(t *testing.T) {
	info, err := InfoFor(Linux, "/home/ana", "ana", nil)
	require.NoError(t, err)

	loc := info.Locations("/home/ana/.cache", "/opt/cache", "/opt/cache")
	count := 0
	for _, c := range loc.Cache {
		if c == "/opt/cache" || c == "/home/ana/.cache" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestProtectedRoots(t *testing.T) {
	info, err := InfoFor(Linux, "/home/ana", "ana", nil)
	require.NoError(t, err)

	roots := info.ProtectedRoots()
	for _, want := range []string{"/home/ana", "/home/ana/Downloads", "/home/ana/.cache", "/tmp", "/home/ana/.local/share/Trash/files"} {
		assert.Contains(t, roots, want)
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	_, err := InfoFor(Unknown, "/home/ana", "ana", nil)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}
