// Package document defines the index operation exchanged between event
// callbacks, transform scripts and the backend adapter.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Map keys understood by transforms and by the backend index call.
const (
	KeyIndex   = "index"
	KeyDocType = "doc_type"
	KeyBody    = "body"
	KeyID      = "id"
)

// paramKeys are the optional index parameters a transform may set. They are
// the query parameters of the backend's index API; values are passed through
// as text and checked by the backend.
var paramKeys = map[string]struct{}{
	"refresh":                {},
	"routing":                {},
	"pipeline":               {},
	"timeout":                {},
	"op_type":                {},
	"version":                {},
	"version_type":           {},
	"if_seq_no":              {},
	"if_primary_term":        {},
	"wait_for_active_shards": {},
	"require_alias":          {},
}

var ErrNoIndex = errors.New("document: operation has no index")

// Operation is the parameter set for one document write. It is built fresh per
// event and not modified after it is handed to the backend.
type Operation struct {
	Index   string
	DocType string
	ID      string // empty lets the backend assign one
	Body    any    // decoded JSON value or raw text
	Params  map[string]string
}

// HasBody reports whether the operation carries something to index.
func (o Operation) HasBody() bool { return !EmptyBody(o.Body) }

// EmptyBody reports whether v is an absent document body: nil, an empty
// string, or an empty object or list.
func EmptyBody(v any) bool {
	switch b := v.(type) {
	case nil:
		return true
	case string:
		return b == ""
	case []byte:
		return len(b) == 0
	case map[string]any:
		return len(b) == 0
	case []any:
		return len(b) == 0
	}
	return false
}

// Map renders the operation in the shape transform scripts receive. Absent id
// and doc_type are nil.
func (o Operation) Map() map[string]interface{} {
	m := map[string]interface{}{
		KeyIndex:   o.Index,
		KeyDocType: nil,
		KeyBody:    o.Body,
		KeyID:      nil,
	}
	if o.DocType != "" {
		m[KeyDocType] = o.DocType
	}
	if o.ID != "" {
		m[KeyID] = o.ID
	}
	for k, v := range o.Params {
		m[k] = v
	}
	return m
}

// FieldError reports a key in an operation map that cannot be used.
type FieldError struct {
	Key    string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("document: field %q: %s", e.Key, e.Reason)
}

// FromMap converts a transform-produced map into an Operation.
func FromMap(m map[string]interface{}) (Operation, error) {
	var op Operation
	idx, _ := m[KeyIndex].(string)
	if idx == "" {
		return op, ErrNoIndex
	}
	op.Index = idx

	switch dt := m[KeyDocType].(type) {
	case nil:
	case string:
		op.DocType = dt
	default:
		return op, &FieldError{Key: KeyDocType, Reason: fmt.Sprintf("want string, got %T", dt)}
	}

	if raw, ok := m[KeyID]; ok && raw != nil {
		id, ok := FormatID(raw)
		if !ok {
			return op, &FieldError{Key: KeyID, Reason: fmt.Sprintf("unsupported id type %T", raw)}
		}
		op.ID = id
	}
	op.Body = m[KeyBody]

	var unknown []string
	for k, v := range m {
		switch k {
		case KeyIndex, KeyDocType, KeyID, KeyBody:
			continue
		}
		if _, ok := paramKeys[k]; !ok {
			unknown = append(unknown, k)
			continue
		}
		if v == nil {
			continue
		}
		if op.Params == nil {
			op.Params = make(map[string]string)
		}
		op.Params[k] = fmt.Sprint(v)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return op, &FieldError{Key: strings.Join(unknown, ","), Reason: "unexpected parameter"}
	}
	return op, nil
}

// FormatID renders a scalar document id. Empty values are not ids.
func FormatID(v any) (string, bool) {
	var s string
	switch id := v.(type) {
	case string:
		s = id
	case json.Number:
		s = id.String()
	case int:
		s = strconv.Itoa(id)
	case int32:
		s = strconv.FormatInt(int64(id), 10)
	case int64:
		s = strconv.FormatInt(id, 10)
	case uint64:
		s = strconv.FormatUint(id, 10)
	case float64:
		s = strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return "", false
	}
	return s, s != ""
}
