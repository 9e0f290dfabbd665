package factory

import (
	"CommSpectra/internal/config"
	"CommSpectra/internal/model"
	"fmt"
	"log"
)

// SinkFactory builds one sink from its definition. runID identifies this
// process run in published reports.
type SinkFactory func(def config.SinkDef, runID string) (model.Sink, error)

// registry holds the mapping of sink types to their factory functions.
var registry = make(map[string]SinkFactory)

// RegisterSink registers a new sink type with its factory function.
func RegisterSink(name string, factory SinkFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("sink type '%s' already registered", name))
	}
	registry[name] = factory
}

// CreateSinks builds every enabled sink in the config. A sink that fails to
// start is skipped with a warning; an unknown sink type is an error.
func CreateSinks(cfg *config.Config, runID string) ([]model.Sink, error) {
	var sinks []model.Sink

	for _, def := range cfg.Reporter.Sinks {
		if !def.Enabled {
			continue
		}
		log.Printf("Creating sink of type: '%s'\n", def.Type)

		factory, ok := registry[def.Type]
		if !ok {
			for _, s := range sinks {
				s.Close()
			}
			return nil, fmt.Errorf("unknown sink type: '%s'", def.Type)
		}

		sink, err := factory(def, runID)
		if err != nil {
			log.Printf("Warning: failed to create sink type '%s': %v, skipping.", def.Type, err)
			continue
		}
		sinks = append(sinks, sink)
	}

	return sinks, nil
}
