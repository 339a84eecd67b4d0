package nn

import (
	"fmt"

	"github.com/born-ml/attnet/internal/tensor"
)

// NamedModule pairs a module with the name its state is stored under.
type NamedModule[B tensor.Backend] struct {
	Name   string
	Module Module[B]
}

// Named is shorthand for NamedModule{name, m}.
func Named[B tensor.Backend](name string, m Module[B]) NamedModule[B] {
	return NamedModule[B]{Name: name, Module: m}
}

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. State dict entries
// of a child are stored under its name, e.g. "conv.weight" or "bn.running_var".
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.Named("fc1", nn.NewLinear(784, 128, rng, backend)),
//	    nn.Named("relu", nn.NewReLU[B]()),
//	    nn.Named("fc2", nn.NewLinear(128, 10, rng, backend)),
//	)
//	output := model.Forward(input)
type Sequential[B tensor.Backend] struct {
	modules []NamedModule[B]
}

// NewSequential creates a new Sequential container. Names must be unique.
func NewSequential[B tensor.Backend](modules ...NamedModule[B]) *Sequential[B] {
	seen := make(map[string]bool, len(modules))
	for _, m := range modules {
		if seen[m.Name] {
			panic(fmt.Sprintf("sequential: duplicate module name %q", m.Name))
		}
		seen[m.Name] = true
	}
	return &Sequential[B]{modules: modules}
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.Tensor[B]) *tensor.Tensor[B] {
	output := input
	for _, m := range s.modules {
		output = m.Module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules, in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range s.modules {
		params = append(params, m.Module.Parameters()...)
	}
	return params
}

// SetTraining propagates the mode to every child.
func (s *Sequential[B]) SetTraining(training bool) {
	for _, m := range s.modules {
		SetTraining(m.Module, training)
	}
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index].Module
}

// StateDict returns the state of every child under "<name>.".
func (s *Sequential[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for _, m := range s.modules {
		merge(stateDict, m.Name, m.Module.StateDict())
	}
	return stateDict
}

// LoadStateDict loads every child from the entries under "<name>.".
func (s *Sequential[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for _, m := range s.modules {
		if err := loadChild(m.Module, m.Name, stateDict); err != nil {
			return err
		}
	}
	return nil
}
