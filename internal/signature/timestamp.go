package signature

import (
	"fmt"
	"time"
)

const (
	TimestampLayout       = "2006-01-02T15:04:05-07:00"
	LegacyTimestampLayout = "2006-01-02 15:04:05"
)

var jakarta = loadJakarta()

func loadJakarta() *time.Location {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		// containers without tzdata
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}

func Location() *time.Location {
	return jakarta
}

// Timestamp renders t the way it must appear in X-TIMESTAMP.
func Timestamp(t time.Time) string {
	return t.In(jakarta).Format(TimestampLayout)
}

func LegacyTimestamp(t time.Time) string {
	return t.In(jakarta).Format(LegacyTimestampLayout)
}

// ParseTimestamp accepts either wire format. Legacy values carry no offset and are read as Jakarta time.
func ParseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(LegacyTimestampLayout, value, jakarta); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}
