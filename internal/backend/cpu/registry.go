package cpu

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/gonum"
)

// ErrUnavailable is returned when a requested BLAS implementation is not
// compiled into the binary.
var ErrUnavailable = errors.New("cpu: BLAS implementation unavailable")

type blasImpl struct {
	name     string
	priority int // Higher wins when selecting automatically.
	impl     blas.Float32
}

var registry = map[string]blasImpl{
	"gonum": {name: "gonum", priority: 0, impl: gonum.Implementation{}},
}

// registerBLAS adds an implementation. Called from build-tagged init functions.
func registerBLAS(name string, priority int, impl blas.Float32) {
	registry[name] = blasImpl{name: name, priority: priority, impl: impl}
}

// Available lists the compiled-in BLAS implementations, best first.
func Available() []string {
	impls := sorted()
	names := make([]string, len(impls))
	for i, impl := range impls {
		names[i] = impl.name
	}
	return names
}

func sorted() []blasImpl {
	impls := make([]blasImpl, 0, len(registry))
	for _, impl := range registry {
		impls = append(impls, impl)
	}
	sort.Slice(impls, func(i, j int) bool {
		if impls[i].priority != impls[j].priority {
			return impls[i].priority > impls[j].priority
		}
		return impls[i].name < impls[j].name
	})
	return impls
}

func best() blasImpl {
	return sorted()[0]
}

func lookup(name string) (blasImpl, error) {
	if name == "" || name == "auto" {
		return best(), nil
	}
	impl, ok := registry[name]
	if !ok {
		return blasImpl{}, fmt.Errorf("%w: %q (available: %v)", ErrUnavailable, name, Available())
	}
	return impl, nil
}
