package signature

import (
	"errors"
	"time"
)

// amzDateLayouts lists every wire format the x-amz-date / Date header may
// arrive in; the v2 signer tried RFC1123 first historically, but clients
// in the wild also send ISO8601 and ISO8601-with-millis.
var amzDateLayouts = []string{
	time.RFC1123,
	"Mon, 02 Jan 2006 15:04:05 GMT",
	"20060102T150405Z",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
}

// ParseAmzDate parses a Date or x-amz-date header value against every
// format the gateway accepts, returning the first successful match.
func ParseAmzDate(dateString string) (time.Time, error) {
	for _, layout := range amzDateLayouts {
		if t, err := time.Parse(layout, dateString); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("malformed date header")
}
