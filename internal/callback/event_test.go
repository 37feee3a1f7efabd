package callback

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esbridge/internal/bus"
	"esbridge/internal/document"
	"esbridge/internal/transform"
)

// recordingIndexer keeps every submitted operation and fails the call whose
// 1-based position equals failAt.
type recordingIndexer struct {
	mu     sync.Mutex
	ops    []document.Operation
	failAt int
}

func (r *recordingIndexer) Index(_ context.Context, op document.Operation) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
	if r.failAt == len(r.ops) {
		return nil, errors.New("backend rejected document")
	}
	return map[string]any{"result": "created"}, nil
}

type transformFunc func(ev transform.Event, def document.Operation) ([]document.Operation, error)

func (f transformFunc) Transform(ev transform.Event, def document.Operation) ([]document.Operation, error) {
	return f(ev, def)
}

func group(t transform.EventTransform, idField string) EventGroup {
	return EventGroup{Name: "g1", Index: "events", DocType: "event", IDField: idField, Transform: t}
}

func event(payload string) *bus.Event {
	return &bus.Event{Topic: "/sample/event", Payload: []byte(payload)}
}

func TestOnEvent_IDFieldScenario(t *testing.T) {
	idx := &recordingIndexer{}
	cb := NewEventCallback(group(nil, "event_id"), idx)

	require.NoError(t, cb.OnEvent(context.Background(), event(`{"event_id":"E1","message":"hi"}`)))
	require.Len(t, idx.ops, 1)
	assert.Equal(t, document.Operation{
		Index:   "events",
		DocType: "event",
		ID:      "E1",
		Body:    map[string]any{"event_id": "E1", "message": "hi"},
	}, idx.ops[0])
}

func TestOnEvent_NoIDField(t *testing.T) {
	idx := &recordingIndexer{}
	cb := NewEventCallback(group(nil, ""), idx)

	require.NoError(t, cb.OnEvent(context.Background(), event(`{"n":12.50,"tags":["a"]}`)))
	require.Len(t, idx.ops, 1)
	assert.Empty(t, idx.ops[0].ID)
	assert.Equal(t, map[string]any{"n": json.Number("12.50"), "tags": []any{"a"}}, idx.ops[0].Body)
}

func TestOnEvent_NumericID(t *testing.T) {
	idx := &recordingIndexer{}
	cb := NewEventCallback(group(nil, "seq"), idx)

	require.NoError(t, cb.OnEvent(context.Background(), event(`{"seq":12345678901234567890}`)))
	require.Len(t, idx.ops, 1)
	assert.Equal(t, "12345678901234567890", idx.ops[0].ID)
}

func TestOnEvent_Dropped(t *testing.T) {
	cases := map[string]struct {
		idField string
		payload string
	}{
		"undecodable":      {payload: `not json`},
		"trailing data":    {payload: `{"a":1} x`},
		"missing id":       {idField: "event_id", payload: `{"message":"hi"}`},
		"empty id":         {idField: "event_id", payload: `{"event_id":""}`},
		"null id":          {idField: "event_id", payload: `{"event_id":null}`},
		"non-object id":    {idField: "event_id", payload: `["E1"]`},
		"empty object":     {payload: `{}`},
		"null payload":     {payload: `null`},
		"empty payload":    {payload: ``},
		"empty string doc": {payload: `""`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			idx := &recordingIndexer{}
			cb := NewEventCallback(group(nil, tc.idField), idx)
			assert.NoError(t, cb.OnEvent(context.Background(), event(tc.payload)))
			assert.Empty(t, idx.ops)
		})
	}
}

func TestOnEvent_RawPayloadGoesToTransform(t *testing.T) {
	idx := &recordingIndexer{}
	var seen document.Operation
	tr := transformFunc(func(ev transform.Event, def document.Operation) ([]document.Operation, error) {
		seen = def
		def.Body = map[string]any{"line": def.Body}
		return []document.Operation{def}, nil
	})
	cb := NewEventCallback(group(tr, "event_id"), idx)

	require.NoError(t, cb.OnEvent(context.Background(), event(`plain text line`)))
	assert.Equal(t, "plain text line", seen.Body)
	assert.Empty(t, seen.ID)
	require.Len(t, idx.ops, 1)
	assert.Equal(t, map[string]any{"line": "plain text line"}, idx.ops[0].Body)
}

func TestOnEvent_TransformEmpty(t *testing.T) {
	idx := &recordingIndexer{}
	tr := transformFunc(func(transform.Event, document.Operation) ([]document.Operation, error) {
		return nil, nil
	})
	cb := NewEventCallback(group(tr, ""), idx)

	require.NoError(t, cb.OnEvent(context.Background(), event(`{"a":1}`)))
	assert.Empty(t, idx.ops)
}

func TestOnEvent_TransformSingle(t *testing.T) {
	idx := &recordingIndexer{}
	tr := transformFunc(func(_ transform.Event, def document.Operation) ([]document.Operation, error) {
		return []document.Operation{{Index: "other", ID: "x", Body: def.Body}}, nil
	})
	cb := NewEventCallback(group(tr, ""), idx)

	require.NoError(t, cb.OnEvent(context.Background(), event(`{"a":1}`)))
	require.Len(t, idx.ops, 1)
	assert.Equal(t, "other", idx.ops[0].Index)
	assert.Equal(t, "x", idx.ops[0].ID)
}

func threeOps(transform.Event, document.Operation) ([]document.Operation, error) {
	return []document.Operation{
		{Index: "i", ID: "1", Body: "a"},
		{Index: "i", ID: "2", Body: "b"},
		{Index: "i", ID: "3", Body: "c"},
	}, nil
}

func TestOnEvent_TransformManyInOrder(t *testing.T) {
	idx := &recordingIndexer{}
	cb := NewEventCallback(group(transformFunc(threeOps), ""), idx)

	require.NoError(t, cb.OnEvent(context.Background(), event(`{"a":1}`)))
	require.Len(t, idx.ops, 3)
	for i, op := range idx.ops {
		assert.Equal(t, []string{"1", "2", "3"}[i], op.ID)
	}
}

func TestOnEvent_StopsAtFirstFailure(t *testing.T) {
	idx := &recordingIndexer{failAt: 2}
	cb := NewEventCallback(group(transformFunc(threeOps), ""), idx)

	err := cb.OnEvent(context.Background(), event(`{"a":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend rejected document")
	assert.Len(t, idx.ops, 2, "third operation must not be attempted")
}

func TestOnEvent_SkipsOperationsWithoutBody(t *testing.T) {
	idx := &recordingIndexer{}
	tr := transformFunc(func(transform.Event, document.Operation) ([]document.Operation, error) {
		return []document.Operation{{Index: "i", ID: "1"}, {Index: "i", ID: "2", Body: "b"}}, nil
	})
	cb := NewEventCallback(group(tr, ""), idx)

	require.NoError(t, cb.OnEvent(context.Background(), event(`{"a":1}`)))
	require.Len(t, idx.ops, 1)
	assert.Equal(t, "2", idx.ops[0].ID)
}

func TestOnEvent_EmptyTransformedBodiesAreSkipped(t *testing.T) {
	idx := &recordingIndexer{}
	tr := transformFunc(func(transform.Event, document.Operation) ([]document.Operation, error) {
		return []document.Operation{
			{Index: "i", ID: "1", Body: map[string]any{}},
			{Index: "i", ID: "2", Body: []any{}},
			{Index: "i", ID: "3", Body: map[string]any{"a": 1}},
		}, nil
	})
	cb := NewEventCallback(group(tr, ""), idx)

	require.NoError(t, cb.OnEvent(context.Background(), event(`{"a":1}`)))
	require.Len(t, idx.ops, 1)
	assert.Equal(t, "3", idx.ops[0].ID)
}

func TestOnEvent_TransformErrorPropagates(t *testing.T) {
	idx := &recordingIndexer{}
	boom := errors.New("script exploded")
	tr := transformFunc(func(transform.Event, document.Operation) ([]document.Operation, error) {
		return nil, boom
	})
	cb := NewEventCallback(group(tr, ""), idx)

	err := cb.OnEvent(context.Background(), event(`{"a":1}`))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, idx.ops)
}

func TestOnEvent_JSScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "split.js")
	require.NoError(t, os.WriteFile(path, []byte(`
function on_event(event, op) {
  var out = [];
  op.body.items.forEach(function (item, i) {
    out.push({index: op.index, doc_type: op.doc_type, id: op.id + "-" + i, body: {item: item}});
  });
  return out;
}
`), 0o644))
	tr, err := transform.New(path, "g1", false)
	require.NoError(t, err)

	idx := &recordingIndexer{}
	cb := NewEventCallback(group(tr, "event_id"), idx)
	require.NoError(t, cb.OnEvent(context.Background(), event(`{"event_id":"E1","items":["x","y"]}`)))

	require.Len(t, idx.ops, 2)
	assert.Equal(t, "E1-0", idx.ops[0].ID)
	assert.Equal(t, "E1-1", idx.ops[1].ID)
	assert.Equal(t, "event", idx.ops[1].DocType)
	assert.Equal(t, map[string]any{"item": "y"}, idx.ops[1].Body)
}
