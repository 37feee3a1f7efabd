// Package transform loads operator-supplied transform scripts and runs them
// against received events. A script turns one event plus the default index
// operation into zero or more index operations. Engines are picked by file
// extension: Go sources run under yaegi, JavaScript under goja.
package transform
