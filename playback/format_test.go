package playback

import "testing"

func TestFormatTime(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00:00"},
		{999, "00:00"},
		{1000, "00:01"},
		{5000, "00:05"},
		{65000, "01:05"},
		{3599000, "59:59"},
		{3600000, "01:00:00"},
		{3661000, "01:01:01"},
		{-500, "00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatTime(tt.ms); got != tt.want {
				t.Errorf("FormatTime(%d) = %q, want %q", tt.ms, got, tt.want)
			}
		})
	}
}
