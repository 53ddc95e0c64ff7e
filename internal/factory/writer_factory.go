package factory

import (
	"NetSentry/internal/config"
	"NetSentry/internal/model"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// WriterFactory builds a record sink from its configuration.
type WriterFactory func(cfg config.SinkConfig) (model.Writer, error)

// registry holds the mapping of sink types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new sink type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// WriterTypes lists the registered sink types.
func WriterTypes() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateWriters builds every enabled sink in the config. If one fails, the sinks
// built so far are closed.
func CreateWriters(cfg *config.Config) ([]model.Writer, error) {
	var writers []model.Writer

	for _, def := range cfg.Sinks {
		if !def.Enabled {
			continue
		}
		log.Printf("Creating writer of type: '%s'", def.Type)

		factory, ok := registry[def.Type]
		if !ok {
			closeAll(writers)
			return nil, fmt.Errorf("unknown writer type: '%s' (available: %s)", def.Type, strings.Join(WriterTypes(), ", "))
		}

		w, err := factory(def)
		if err != nil {
			closeAll(writers)
			return nil, fmt.Errorf("error creating writer type '%s': %w", def.Type, err)
		}
		writers = append(writers, w)
	}

	return writers, nil
}

func closeAll(writers []model.Writer) {
	for _, w := range writers {
		if err := w.Close(); err != nil {
			log.Warnf("Failed to close writer '%s': %v", w.Name(), err)
		}
	}
}
