package storage

import (
	"errors"

	"github.com/hashicorp/go-hclog"
)

var (
	log hclog.Logger

	initcallbacks []func()

	factories map[string]Factory
)

// A Factory creates a ready to use store instance.
type Factory func(hclog.Logger) (Storage, error)

func init() {
	factories = make(map[string]Factory)
	log = hclog.L()
}

// SetLogger injects a logger into this package to allow setting up a
// logger tree.
func SetLogger(l hclog.Logger) {
	log = l
}

// RegisterFactory registers a factory to the list of available
// stores that can be used.
func RegisterFactory(s string, f Factory) {
	if _, exists := factories[s]; exists {
		log.Warn("Store name collision", "store", s)
		return
	}
	factories[s] = f
	log.Info("Registered store", "store", s)
}

// RegisterCallback provides early registration of a function to be
// called during initialization, so backends can register their
// factories after config parsing and logger setup have happened.
func RegisterCallback(f func()) {
	initcallbacks = append(initcallbacks, f)
}

// DoCallbacks invokes all callbacks, registering the backends to the
// map of factories.
func DoCallbacks() {
	for _, cb := range initcallbacks {
		cb()
	}
}

// Initialize attempts to initialize the given store and returns
// either a ready to use store or an error.
func Initialize(s string) (Storage, error) {
	f, ok := factories[s]
	if !ok {
		log.Error("Non-existant factory requested", "factory", s)
		return nil, errors.New("no factory exists with that name")
	}
	return f(log)
}
