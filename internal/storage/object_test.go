package storage

import (
	"testing"

	"github.com/cloudgate/s3gw/internal/apierrors"
)

func TestParseRangeNoHeader(t *testing.T) {
	r, err := ParseRange("")
	if err != nil {
		t.Fatalf("ParseRange(\"\"): %v", err)
	}
	if r.Set {
		t.Error("expected an unset Range for an empty header")
	}
}

func TestParseRangeValid(t *testing.T) {
	cases := []struct {
		header     string
		start, end int64
	}{
		{"bytes=0-499", 0, 499},
		{"bytes=500-999", 500, 999},
		{"bytes=9500-", 9500, -1},
	}
	for _, c := range cases {
		t.Run(c.header, func(t *testing.T) {
			r, err := ParseRange(c.header)
			if err != nil {
				t.Fatalf("ParseRange(%q): %v", c.header, err)
			}
			if !r.Set || r.Start != c.start || r.End != c.end {
				t.Errorf("ParseRange(%q) = %+v, want start=%d end=%d", c.header, r, c.start, c.end)
			}
		})
	}
}

func TestParseRangeInvalid(t *testing.T) {
	cases := []string{
		"0-499",         // missing "bytes=" prefix
		"bytes=",        // no dash at all
		"bytes=abc-1",   // non-numeric start
		"bytes=500-100", // end before start
	}
	for _, header := range cases {
		t.Run(header, func(t *testing.T) {
			if _, err := ParseRange(header); !apierrors.Is(err, apierrors.ErrInvalidRange) {
				t.Errorf("ParseRange(%q) error = %v, want ErrInvalidRange", header, err)
			}
		})
	}
}

func TestRangeResolve(t *testing.T) {
	cases := []struct {
		name       string
		r          Range
		size       int64
		wantOffset int64
		wantLength int64
		wantErr    bool
	}{
		{"unset_returns_whole_object", Range{}, 1000, 0, 1000, false},
		{"first_500", Range{Set: true, Start: 0, End: 499}, 1000, 0, 500, false},
		{"open_ended_clamped_to_size", Range{Set: true, Start: 500, End: -1}, 1000, 500, 500, false},
		{"end_beyond_size_rejected", Range{Set: true, Start: 900, End: 5000}, 1000, 0, 0, true},
		{"start_at_size_rejected", Range{Set: true, Start: 1000, End: -1}, 1000, 0, 0, true},
		{"start_beyond_size_rejected", Range{Set: true, Start: 2000, End: 3000}, 1000, 0, 0, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			offset, length, err := c.r.resolve(c.size)
			if c.wantErr {
				if !apierrors.Is(err, apierrors.ErrInvalidRange) {
					t.Errorf("resolve() error = %v, want ErrInvalidRange", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve(): %v", err)
			}
			if offset != c.wantOffset || length != c.wantLength {
				t.Errorf("resolve() = (%d, %d), want (%d, %d)", offset, length, c.wantOffset, c.wantLength)
			}
		})
	}
}
