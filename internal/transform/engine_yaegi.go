package transform

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// GoEntryPoint must be declared by Go transform scripts as either
//
//	func OnEvent(event, op map[string]interface{}) interface{}
//	func OnEvent(event, op map[string]interface{}) (interface{}, error)
//
// event carries "topic" (string), "payload" ([]byte) and "headers"
// (map[string]string).
const GoEntryPoint = "OnEvent"

type (
	goPlainFunc func(map[string]interface{}, map[string]interface{}) interface{}
	goErrFunc   func(map[string]interface{}, map[string]interface{}) (interface{}, error)
)

type yaegiEngine struct{}

func (yaegiEngine) Load(path, namespace string) (Function, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := parser.ParseFile(token.NewFileSet(), path, src, parser.PackageClauseOnly)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, err
	}
	if _, err := i.Eval(string(src)); err != nil {
		return nil, err
	}

	sym := GoEntryPoint
	if pkg := f.Name.Name; pkg != "main" {
		sym = pkg + "." + GoEntryPoint
	}
	v, err := i.Eval(sym)
	if err != nil {
		return nil, &MissingEntryPointError{Path: path, Namespace: namespace, EntryPoint: GoEntryPoint}
	}

	switch fn := v.Interface().(type) {
	case func(map[string]interface{}, map[string]interface{}) interface{}:
		return &goFunction{plain: fn}, nil
	case func(map[string]interface{}, map[string]interface{}) (interface{}, error):
		return &goFunction{withErr: fn}, nil
	default:
		return nil, &MissingEntryPointError{Path: path, Namespace: namespace, EntryPoint: GoEntryPoint,
			Reason: fmt.Sprintf("unsupported signature %T", fn)}
	}
}

type goFunction struct {
	plain   goPlainFunc
	withErr goErrFunc
}

func (f *goFunction) Invoke(ev Event, op map[string]interface{}) (out interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	headers := ev.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	event := map[string]interface{}{
		"topic":   ev.Topic,
		"payload": ev.Payload,
		"headers": headers,
	}
	if f.withErr != nil {
		return f.withErr(event, op)
	}
	return f.plain(event, op), nil
}

func init() { Register(".go", yaegiEngine{}) }
