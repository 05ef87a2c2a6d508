package signature

import (
	"strconv"
	"testing"
	"time"
)

func TestParseAmzDateFormats(t *testing.T) {
	cases := []string{
		"Mon, 02 Jan 2006 15:04:05 GMT",
		"20060102T150405Z",
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
	}
	for _, layout := range cases {
		t.Run(layout, func(t *testing.T) {
			if _, err := ParseAmzDate(layout); err != nil {
				t.Errorf("ParseAmzDate(%q): %v", layout, err)
			}
		})
	}
}

func TestParseAmzDateMalformed(t *testing.T) {
	if _, err := ParseAmzDate("not a date"); err == nil {
		t.Error("expected an error for a malformed date string")
	}
}

func TestVerifyDateClockSkewBoundary(t *testing.T) {
	// anchor is a whole-second point at or before the real clock when
	// verifyDate's internal time.Now() runs, so the few-microsecond gap
	// between capturing anchor and that call never flips a boundary case.
	anchor := time.Now().Truncate(time.Second)

	cases := []struct {
		name string
		skew time.Duration
		want bool
	}{
		{"just_inside_past", -maxClockSkew + time.Second, true},
		{"just_inside_future", maxClockSkew - time.Second, true},
		{"well_beyond_past", -(maxClockSkew + time.Minute), false},
		{"well_beyond_future", maxClockSkew + time.Minute, false},
		{"no_skew", 0, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			date := anchor.Add(c.skew).Format(time.RFC1123)
			ok, err := verifyDate(date)
			if err != nil {
				t.Fatalf("verifyDate: %v", err)
			}
			if ok != c.want {
				t.Errorf("verifyDate(%v skew) = %v, want %v", c.skew, ok, c.want)
			}
		})
	}
}

func TestVerifyNotExpiredBoundary(t *testing.T) {
	// anchor is a whole-second point guaranteed to be at or before the
	// real clock at the moment verifyNotExpired calls time.Now(), so the
	// future/past cases below are deterministic rather than racing the
	// wall clock on a tight boundary.
	anchor := time.Now().Truncate(time.Second)

	cases := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{"expires_in_future", anchor.Add(time.Minute), true},
		{"expires_one_second_ahead", anchor.Add(time.Second), true},
		{"expired_in_past", anchor.Add(-time.Minute), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ok, err := verifyNotExpired(formatUnix(c.expires))
			if err != nil {
				t.Fatalf("verifyNotExpired: %v", err)
			}
			if ok != c.want {
				t.Errorf("verifyNotExpired(%v) = %v, want %v", c.expires, ok, c.want)
			}
		})
	}
}

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
