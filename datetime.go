package gokusto

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kusto timespan literals look like [-][d.]hh:mm:ss[.fffffff] where the
// fraction is in 100ns ticks.
var timespanPattern = regexp.MustCompile(`^(-)?(?:(\d+)\.)?(\d+):(\d+):(\d+)(?:\.(\d+))?$`)

const ticksPerSecond = 10000000

func parseKustoDateTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime literal %q: %v", s, err)
	}
	return t, nil
}

func formatKustoDateTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseKustoTimespan(s string) (time.Duration, error) {
	m := timespanPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid timespan literal %q", s)
	}
	days := timespanSegment(m[2])
	hours := timespanSegment(m[3])
	minutes := timespanSegment(m[4])
	seconds := timespanSegment(m[5])

	// The fraction is a tick count, 7 digits at most. Right-pad so that
	// shorter fractions keep their magnitude.
	var ticks int64
	if m[6] != "" {
		frac := m[6]
		if len(frac) > 7 {
			frac = frac[:7]
		}
		frac += strings.Repeat("0", 7-len(frac))
		ticks, _ = strconv.ParseInt(frac, 10, 64)
	}

	d := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(ticks)*100*time.Nanosecond
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

func timespanSegment(s string) int64 {
	if s == "" {
		return 0
	}
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func formatKustoTimespan(d time.Duration) string {
	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		d = -d
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second
	ticks := d.Nanoseconds() / 100

	if days > 0 {
		fmt.Fprintf(&sb, "%d.", days)
	}
	fmt.Fprintf(&sb, "%02d:%02d:%02d.%07d", hours, minutes, seconds, ticks)
	return sb.String()
}
