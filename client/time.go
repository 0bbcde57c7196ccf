package client

import (
	"time"

	"github.com/pkg/errors"
)

// Time parses the providers' RFC 3339 timestamps, with or without fractional seconds
type Time struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Time) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return errors.Errorf("Invalid timestamp: %s", s)
	}
	parsed, err := time.Parse(time.RFC3339, s[1:len(s)-1])
	if err != nil {
		return errors.Wrap(err, "Invalid timestamp")
	}
	t.Time = parsed
	return nil
}
