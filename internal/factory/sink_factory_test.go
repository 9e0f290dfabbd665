package factory

import (
	"errors"
	"testing"

	"CommSpectra/internal/config"
	"CommSpectra/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSink struct{ runID string }

func (nopSink) Emit(model.Report) error { return nil }
func (nopSink) Close() error            { return nil }

func TestCreateSinks(t *testing.T) {
	RegisterSink("nop-test", func(def config.SinkDef, runID string) (model.Sink, error) {
		return nopSink{runID: runID}, nil
	})
	RegisterSink("broken-test", func(config.SinkDef, string) (model.Sink, error) {
		return nil, errors.New("no server")
	})

	cfg := config.Default()
	cfg.Reporter.Sinks = []config.SinkDef{
		{Type: "nop-test", Enabled: true},
		{Type: "nop-test", Enabled: false},
		{Type: "broken-test", Enabled: true},
	}
	sinks, err := CreateSinks(cfg, "run-1")
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.Equal(t, "run-1", sinks[0].(nopSink).runID)

	cfg.Reporter.Sinks = []config.SinkDef{{Type: "missing", Enabled: true}}
	_, err = CreateSinks(cfg, "run-1")
	assert.Error(t, err)

	assert.Panics(t, func() {
		RegisterSink("nop-test", nil)
	})
}
