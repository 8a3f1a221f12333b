package printer

import (
	"fmt"
	"time"
)

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// FormatBytes returns a human-readable size of the bytes moved by a stream.
// Examples: "0 B", "512 B", "1.5 KB", "700.0 MB".
func FormatBytes(n int64) string {
	const unit = 1024

	if n < unit {
		return fmt.Sprintf("%d B", max(n, 0))
	}

	v := float64(n) / unit
	i := 0
	for v >= unit && i < len(byteUnits)-1 {
		v /= unit
		i++
	}

	return fmt.Sprintf("%.1f %s", v, byteUnits[i])
}

var agoUnits = []struct {
	d    time.Duration
	name string
}{
	{24 * time.Hour, "day"},
	{time.Hour, "hour"},
	{time.Minute, "minute"},
	{time.Second, "second"},
}

// TimeAgo returns how long ago a session started, using the biggest whole unit.
// Examples: "just now", "1 second ago", "3 hours ago".
func TimeAgo(t time.Time) string {
	return timeAgo(time.Now(), t)
}

func timeAgo(now, t time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		return "in the future"
	}

	for _, u := range agoUnits {
		if diff < u.d {
			continue
		}

		n := int(diff / u.d)
		if n == 1 {
			return fmt.Sprintf("1 %s ago", u.name)
		}
		return fmt.Sprintf("%d %ss ago", n, u.name)
	}

	return "just now"
}

// FormatTimestamp returns the timestamp in UTC with second precision.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// FormatDuration returns the duration of a session, "running" when it didn't end yet.
func FormatDuration(start time.Time, end *time.Time) string {
	if end == nil {
		return "running"
	}

	d := end.Sub(start)
	if d >= time.Second {
		d = d.Round(time.Millisecond)
	}
	return d.String()
}
