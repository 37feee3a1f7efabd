package transform

import "fmt"

// LoadError reports a script that could not be read, parsed or executed.
type LoadError struct {
	Path      string
	Namespace string
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("transform: load %s as %s: %v", e.Path, e.Namespace, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// MissingEntryPointError reports a script without a usable entry point.
type MissingEntryPointError struct {
	Path       string
	Namespace  string
	EntryPoint string
	Reason     string
}

func (e *MissingEntryPointError) Error() string {
	msg := fmt.Sprintf("transform: %s function not found in %s (%s)", e.EntryPoint, e.Path, e.Namespace)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// InvokeError wraps a failure raised by the script itself.
type InvokeError struct {
	Namespace string
	Err       error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("transform: %s: %v", e.Namespace, e.Err)
}

func (e *InvokeError) Unwrap() error { return e.Err }

// ResultError reports a script return value that is not an operation, a list
// of operations or nothing.
type ResultError struct {
	Namespace string
	Reason    string
	Err       error
}

func (e *ResultError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transform: %s returned %s: %v", e.Namespace, e.Reason, e.Err)
	}
	return fmt.Sprintf("transform: %s returned %s", e.Namespace, e.Reason)
}

func (e *ResultError) Unwrap() error { return e.Err }
