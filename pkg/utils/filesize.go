package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	B  = 1
	KB = 1024 * B
	MB = 1024 * KB
	GB = 1024 * MB
	TB = 1024 * GB
)

// FormatBytes converts bytes to human-readable format using binary units
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatBytesUnsigned is FormatBytes for unsigned counters such as disk usage
func FormatBytesUnsigned(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// ParseSize converts a human-readable size to bytes. A bare number is read
// as megabytes, so "500" means 500 MB. Units are binary: "1KB" and "1KiB"
// are both 1024 bytes.
func ParseSize(size string) (int64, error) {
	s := strings.TrimSpace(size)
	if s == "" {
		return 0, fmt.Errorf("invalid size format: %q", size)
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("size must not be negative: %s", size)
		}
		return int64(n * MB), nil
	}

	// go-humanize treats KB as 1000 bytes; this tool has always used 1024
	upper := strings.ToUpper(s)
	for _, unit := range []string{"KB", "MB", "GB", "TB", "K", "M", "G", "T"} {
		if strings.HasSuffix(upper, unit) && !strings.HasSuffix(upper, "I"+unit) {
			s = s[:len(s)-len(unit)] + string(unit[0]) + "iB"
			break
		}
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size format: %s", size)
	}
	return int64(n), nil
}
