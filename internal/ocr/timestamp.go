package ocr

import (
	"regexp"
	"time"
)

// Device screenshots are named Screenshot_YYYYMMDD_HHMMSS_<app>.jpg; the
// embedded time is the device's local wall clock.
var filenameTimestamp = regexp.MustCompile(`Screenshot_(\d{8})_(\d{6})`)

// TimestampFromFilename recovers the capture time from the filename,
// interprets it in loc and converts to UTC. Returns false when the filename
// carries no timestamp; the caller falls back to upload time.
func TimestampFromFilename(filename string, loc *time.Location) (time.Time, bool) {
	m := filenameTimestamp.FindStringSubmatch(filename)
	if m == nil {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("20060102150405", m[1]+m[2], loc)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
