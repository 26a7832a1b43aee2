package utils

import "testing"

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{-1, "0 B"},
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{300 * MB, "300 MiB"},
		{5 * GB, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"500", 500 * MB, false},
		{"1.5", 1572864, false},
		{"1KB", KB, false},
		{"1kb", KB, false},
		{"10MB", 10 * MB, false},
		{"2G", 2 * GB, false},
		{"3GiB", 3 * GB, false},
		{" 1TB ", TB, false},
		{"", 0, true},
		{"-5", 0, true},
		{"big", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSize(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSize(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
