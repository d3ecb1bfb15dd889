package httpx

import (
	"net/http"
	"sort"
	"strings"
	"time"
)

// DateLayout is the query-string date format.
const DateLayout = "2006-01-02"

type fieldError map[string]string

func (e fieldError) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "invalid query: " + strings.Join(parts, "; ")
}

func (e fieldError) FieldErrors() map[string]string { return e }

func (e fieldError) Unwrap() error { return ErrValidation }

// DateRange reads the optional from/to query parameters. The upper bound
// covers the whole day.
func DateRange(r *http.Request) (from, to *time.Time, err error) {
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		t, perr := time.Parse(DateLayout, raw)
		if perr != nil {
			return nil, nil, fieldError{"from": "must be YYYY-MM-DD"}
		}
		from = &t
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		t, perr := time.Parse(DateLayout, raw)
		if perr != nil {
			return nil, nil, fieldError{"to": "must be YYYY-MM-DD"}
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, fieldError{"to": "must not be before from"}
	}
	return from, to, nil
}
