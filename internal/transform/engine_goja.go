package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dop251/goja"
)

// JSEntryPoint is the global function JavaScript transform scripts define:
//
//	function on_event(event, op) { ... }
//
// event has string fields "topic" and "payload" and a "headers" object.
const JSEntryPoint = "on_event"

type gojaEngine struct{}

func (gojaEngine) Load(path, namespace string) (Function, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	vm := goja.New()
	if _, err := vm.RunScript(path, string(src)); err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(vm.Get(JSEntryPoint))
	if !ok {
		return nil, &MissingEntryPointError{Path: path, Namespace: namespace, EntryPoint: JSEntryPoint}
	}
	return &jsFunction{vm: vm, fn: fn}, nil
}

// jsFunction serializes calls: a goja runtime is single-threaded.
type jsFunction struct {
	mu sync.Mutex
	vm *goja.Runtime
	fn goja.Callable
}

func (f *jsFunction) Invoke(ev Event, op map[string]interface{}) (interface{}, error) {
	plain, err := plainJSON(op)
	if err != nil {
		return nil, fmt.Errorf("convert operation: %w", err)
	}
	headers := make(map[string]interface{}, len(ev.Headers))
	for k, v := range ev.Headers {
		headers[k] = v
	}
	event := map[string]interface{}{
		"topic":   ev.Topic,
		"payload": string(ev.Payload),
		"headers": headers,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	res, err := f.fn(goja.Undefined(), f.vm.ToValue(event), f.vm.ToValue(plain))
	if err != nil {
		var ex *goja.Exception
		if errors.As(err, &ex) {
			return nil, errors.New(ex.Value().String())
		}
		return nil, err
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return nil, nil
	}
	return res.Export(), nil
}

// plainJSON copies v through JSON so scripts see plain numbers and objects.
func plainJSON(v map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func init() { Register(".js", gojaEngine{}) }
