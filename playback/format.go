package playback

import "fmt"

// FormatTime renders a millisecond position as "MM:SS", or "HH:MM:SS" once
// the position reaches an hour. Negative inputs render as "00:00".
func FormatTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	s := ms / 1000
	h := s / 3600
	m := (s % 3600) / 60
	s %= 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
