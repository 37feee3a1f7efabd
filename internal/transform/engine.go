package transform

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"esbridge/internal/logging"
	"esbridge/internal/telemetry"
)

// NamespacePrefix is prepended to the event group name to build the namespace a
// script is loaded under.
const NamespacePrefix = "esbridge.transform."

func Namespace(group string) string { return NamespacePrefix + group }

// Event is what a transform sees of a received bus event.
type Event struct {
	Topic   string
	Payload []byte
	Headers map[string]string
}

// Function is a loaded script entry point.
type Function interface {
	Invoke(ev Event, op map[string]interface{}) (interface{}, error)
}

// Engine loads scripts of one kind into a fresh, isolated runtime.
type Engine interface {
	Load(path, namespace string) (Function, error)
}

var (
	regMu   sync.RWMutex
	engines = map[string]Engine{}
)

// Register binds an engine to a file extension such as ".js".
func Register(ext string, e Engine) {
	regMu.Lock()
	engines[strings.ToLower(ext)] = e
	regMu.Unlock()
}

// Extensions lists the registered script extensions.
func Extensions() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(engines))
	for ext := range engines {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Load reads the script at path into its own namespace and returns its entry
// point. Failures are *LoadError or *MissingEntryPointError.
func Load(path, namespace string) (fn Function, err error) {
	ext := strings.ToLower(filepath.Ext(path))
	regMu.RLock()
	eng, ok := engines[ext]
	regMu.RUnlock()
	if !ok {
		return nil, &LoadError{Path: path, Namespace: namespace,
			Err: fmt.Errorf("no engine for %q scripts (have %s)", ext, strings.Join(Extensions(), ", "))}
	}

	logging.L().Debug("loading transform script", "namespace", namespace, "path", path)
	defer func() {
		if r := recover(); r != nil {
			fn, err = nil, fmt.Errorf("panic: %v", r)
		}
		if err == nil {
			telemetry.TransformLoads.WithLabelValues(namespace, "ok").Inc()
			return
		}
		telemetry.TransformLoads.WithLabelValues(namespace, "error").Inc()
		var mep *MissingEntryPointError
		if !errors.As(err, &mep) {
			var le *LoadError
			if !errors.As(err, &le) {
				err = &LoadError{Path: path, Namespace: namespace, Err: err}
			}
		}
		logging.L().Error("failed to load transform script", "namespace", namespace, "path", path, "err", err)
	}()
	return eng.Load(path, namespace)
}
