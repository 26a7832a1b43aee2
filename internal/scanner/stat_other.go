//go:build !linux && !darwin

package scanner

import (
	"io/fs"
	"time"
)

// accessTime falls back to the modification time where the platform does
// not expose access times through os.FileInfo
func accessTime(info fs.FileInfo) time.Time {
	return info.ModTime()
}

func identity(fs.FileInfo) fileID {
	return fileID{}
}
