package reminder

import (
	"strings"
	"time"
)

const (
	morning   = "09:00"
	afternoon = "14:00"
	night     = "21:00"
)

// Derive maps a free-text medication frequency to a frequency code and its
// daily times. The result always has at least one time.
func Derive(frequency string) (string, []string) {
	f := strings.ToLower(frequency)
	switch {
	case strings.Contains(f, "twice"):
		return FrequencyTwiceDaily, []string{morning, night}
	case strings.Contains(f, "three"):
		return FrequencyThreeTimesDaily, []string{morning, afternoon, night}
	case strings.Contains(f, "night"):
		return FrequencyOnceDaily, []string{night}
	default:
		return FrequencyOnceDaily, []string{morning}
	}
}

func validTime(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil && len(s) == 5
}
