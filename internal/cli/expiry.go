package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseExpiry turns an --expires argument into an absolute expiry time.
// Accepted forms: "+Nd" (N days from now), "YYYY-MM-DD", and
// "YYYY-MM-DD HH:MM:SS". An empty argument means no expiry.
func ParseExpiry(arg string, now time.Time) (*time.Time, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, nil
	}

	if strings.HasPrefix(arg, "+") && strings.HasSuffix(arg, "d") {
		days, err := strconv.Atoi(arg[1 : len(arg)-1])
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("invalid relative expiry %q: want +Nd with positive N", arg)
		}
		expiry := now.Add(time.Duration(days) * 24 * time.Hour)
		return &expiry, nil
	}

	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.ParseInLocation(layout, arg, now.Location()); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("invalid expiry %q: want +Nd, YYYY-MM-DD, or YYYY-MM-DD HH:MM:SS", arg)
}
