// Package kernel defines the element-wise compute contract applied by a
// worker to its primary segments. The actual mathematics are an external
// collaborator; this package only gives them a home and registers the
// two trivial stub kernels, example1 and example2.
package kernel

import "golang.org/x/xerrors"

// Func transforms a segment's values and returns the result as a new
// slice, leaving its input unchanged.
type Func func(data []float64) []float64

var registry = map[string]Func{
	"example1": func(data []float64) []float64 {
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = v * 2
		}
		return out
	},
	"example2": func(data []float64) []float64 {
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = v + 1
		}
		return out
	},
}

// ErrUnknownOperation is returned by Lookup for an unregistered operation name.
var ErrUnknownOperation = xerrors.New("kernel: unknown operation")

// Lookup returns the registered kernel for the given operation name.
func Lookup(operation string) (Func, error) {
	fn, ok := registry[operation]
	if !ok {
		return nil, xerrors.Errorf("%w: %q", ErrUnknownOperation, operation)
	}
	return fn, nil
}

// Register adds or replaces a named kernel, for callers embedding this
// library with their own element-wise transformations.
func Register(operation string, fn Func) {
	registry[operation] = fn
}
