package transport

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads the request body into dst. An empty body leaves dst
// untouched; a malformed one is a validation error.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return Validation("request body must be valid JSON").Wrap(err)
	}
	return nil
}

// ParseInt parses v, returning def when it is absent, malformed or outside
// [min, max].
func ParseInt(v string, def, min, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < min || n > max {
		return def
	}
	return n
}

// ParseFloat parses an optional numeric filter; nil means "not given".
func ParseFloat(v string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
