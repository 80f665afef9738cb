package activity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedDuration is returned for duration text that is not M:S or H:M:S.
var ErrMalformedDuration = errors.New("malformed duration")

// ParseDuration converts RunKeeper duration text to whole seconds.
// "M:S" is minutes and seconds (activities under an hour), "H:M:S" adds hours.
func ParseDuration(text string) (int, error) {
	parts := strings.Split(strings.TrimSpace(text), ":")

	var hours, minutes, seconds string
	switch len(parts) {
	case 2:
		hours, minutes, seconds = "0", parts[0], parts[1]
	case 3:
		hours, minutes, seconds = parts[0], parts[1], parts[2]
	default:
		return 0, fmt.Errorf("%w: %q has %d fields", ErrMalformedDuration, text, len(parts))
	}

	h, err := parseField(hours)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedDuration, text, err)
	}
	m, err := parseField(minutes)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedDuration, text, err)
	}
	s, err := parseField(seconds)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedDuration, text, err)
	}

	return h*3600 + m*60 + s, nil
}

func parseField(field string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(field))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative field %d", n)
	}
	return n, nil
}
