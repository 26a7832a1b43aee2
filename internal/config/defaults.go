package config

// Default values written to a fresh config file
const (
	DefaultMinAgeDays         = 30
	DefaultMinLargeSizeMB     = 100
	DefaultProjectRecentDays  = 14
	DefaultDownloadAgeDays    = 30
	DefaultDuplicateMinSizeKB = 1024
	DefaultLogLevel           = "warn"
)

// GetDefault returns the default configuration
func GetDefault() *Config {
	return &Config{
		MinAgeDays:         DefaultMinAgeDays,
		MinLargeSizeMB:     DefaultMinLargeSizeMB,
		ProjectRecentDays:  DefaultProjectRecentDays,
		DownloadAgeDays:    DefaultDownloadAgeDays,
		DuplicateMinSizeKB: DefaultDuplicateMinSizeKB,
		ExcludedPaths: []string{
			"*.keep",
		},
		CachePaths: []string{},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}
