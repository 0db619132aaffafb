package utils

import (
	"net/url"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------

// ParseFloat converts an exchange numeric string, returning 0 when it is not a number.
func ParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// -----------------------------------------------------------------------------

// MaskAPIKey hides query string values (keys, tokens) of an endpoint before it is logged.
func MaskAPIKey(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.RawQuery == "" {
		return endpoint
	}

	q := u.Query()
	for key := range q {
		q.Set(key, "***")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
