package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/radioclean/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by [Registry.CreateClassifier] when no
// factory has been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// ClassifierFactory builds a classifier from its config entry, configured
// once with the given aggressiveness.
type ClassifierFactory func(entry ClassifierEntry, mode vad.Mode) (vad.Classifier, error)

// Registry maps classifier names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	classifiers map[string]ClassifierFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		classifiers: make(map[string]ClassifierFactory),
	}
}

// RegisterClassifier registers a classifier factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterClassifier(name string, factory ClassifierFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifiers[name] = factory
}

// CreateClassifier instantiates a classifier using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateClassifier(entry ClassifierEntry, mode vad.Mode) (vad.Classifier, error) {
	r.mu.RLock()
	factory, ok := r.classifiers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: classifier/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry, mode)
}

// Classifiers returns the registered names in sorted order.
func (r *Registry) Classifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.classifiers))
	for name := range r.classifiers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// FloatOption reads a numeric option from entry.Options. ok is false when the
// key is absent; a present key with a non-numeric value is an error.
func (e ClassifierEntry) FloatOption(key string) (v float64, ok bool, err error) {
	raw, ok := e.Options[key]
	if !ok {
		return 0, false, nil
	}
	switch n := raw.(type) {
	case int:
		return float64(n), true, nil
	case float64:
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("classifier option %q: want a number, got %T", key, raw)
	}
}
