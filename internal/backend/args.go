package backend

import (
	"encoding/json"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// args tracks which keyword arguments a method consumed so leftovers can be
// reported.
type args struct {
	m    map[string]any
	used map[string]bool
}

func newArgs(m map[string]any) *args {
	if m == nil {
		m = map[string]any{}
	}
	// doc_type is accepted for older callers; 8.x has no mapping types.
	return &args{m: m, used: map[string]bool{"doc_type": true}}
}

func (a *args) get(key string) (any, bool) {
	a.used[key] = true
	v, ok := a.m[key]
	if v == nil {
		return nil, false
	}
	return v, ok
}

func (a *args) str(key string, required bool) (string, error) {
	v, ok := a.get(key)
	if !ok {
		if required {
			return "", argumentError("missing required argument %q", key)
		}
		return "", nil
	}
	switch s := v.(type) {
	case string:
		if s == "" && required {
			return "", argumentError("argument %q must not be empty", key)
		}
		return s, nil
	case json.Number:
		return s.String(), nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(s), nil
	}
	return "", argumentError("argument %q: want string, got %T", key, v)
}

// list accepts a comma separated string or a JSON array of strings.
func (a *args) list(key string, required bool) ([]string, error) {
	v, ok := a.get(key)
	if !ok {
		if required {
			return nil, argumentError("missing required argument %q", key)
		}
		return nil, nil
	}
	switch l := v.(type) {
	case string:
		var out []string
		for _, p := range strings.Split(l, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 && required {
			return nil, argumentError("argument %q must not be empty", key)
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(l))
		for _, el := range l {
			s, ok := el.(string)
			if !ok {
				return nil, argumentError("argument %q: want list of strings, got %T element", key, el)
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return l, nil
	}
	return nil, argumentError("argument %q: want string or list, got %T", key, v)
}

func (a *args) intp(key string) (*int, error) {
	v, ok := a.get(key)
	if !ok {
		return nil, nil
	}
	var n int
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return nil, argumentError("argument %q: %v", key, err)
		}
		n = int(i)
	case float64:
		if x != math.Trunc(x) {
			return nil, argumentError("argument %q: want integer, got %v", key, x)
		}
		n = int(x)
	case int:
		n = x
	case string:
		i, err := strconv.Atoi(x)
		if err != nil {
			return nil, argumentError("argument %q: %v", key, err)
		}
		n = i
	default:
		return nil, argumentError("argument %q: want integer, got %T", key, v)
	}
	return &n, nil
}

func (a *args) boolp(key string) (*bool, error) {
	v, ok := a.get(key)
	if !ok {
		return nil, nil
	}
	switch x := v.(type) {
	case bool:
		return &x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return nil, argumentError("argument %q: %v", key, err)
		}
		return &b, nil
	}
	return nil, argumentError("argument %q: want bool, got %T", key, v)
}

func (a *args) duration(key string) (time.Duration, error) {
	s, err := a.str(key, false)
	if err != nil || s == "" {
		return 0, err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, argumentError("argument %q: %v", key, err)
	}
	return d, nil
}

func (a *args) body(key string, required bool) (io.Reader, error) {
	v, ok := a.get(key)
	if !ok {
		if required {
			return nil, argumentError("missing required argument %q", key)
		}
		return nil, nil
	}
	return bodyReader(v)
}

// done fails on arguments no accessor asked for.
func (a *args) done() error {
	var extra []string
	for k := range a.m {
		if !a.used[k] {
			extra = append(extra, k)
		}
	}
	if len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return argumentError("unexpected argument(s): %s", strings.Join(extra, ", "))
}

// first returns the first error in errs.
func first(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
