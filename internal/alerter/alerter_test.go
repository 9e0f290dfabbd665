package alerter

import (
	"strings"
	"sync"
	"testing"
	"time"

	"CommSpectra/internal/config"
	"CommSpectra/internal/model"
	"CommSpectra/internal/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
}

func (n *recordingNotifier) Send(subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

func TestEvaluateAllRules(t *testing.T) {
	board := report.NewBoard(4)
	board.Apply(model.Report{Category: model.CategoryLate, Key: model.Key{Channel: 7, Bucket: 5 * time.Second}, Value: 50})
	board.Apply(model.Report{Category: model.CategoryLate, Key: model.Key{Channel: 8, Bucket: 5 * time.Second}, Value: 0})
	board.Apply(model.Report{Category: model.CategorySend, Key: model.Key{Channel: 7, Bucket: 5 * time.Second}, Value: 100})

	n := &recordingNotifier{}
	a, err := NewAlerter(&config.AlerterConfig{
		CheckInterval: "1h",
		Rules: []config.AlerterRule{
			{Name: "late traffic", Category: "late", Operator: ">", Threshold: 10},
			{Name: "huge sends", Category: "send", Operator: ">=", Threshold: 1000},
		},
	}, board, n)
	require.NoError(t, err)

	a.evaluateAllRules()
	require.Len(t, n.subjects, 1)
	assert.Equal(t, "CommSpectra Alert Summary (1 Triggered)", n.subjects[0])
	assert.Contains(t, n.bodies[0], "channel 7, bucket 5s: 50")
	assert.False(t, strings.Contains(n.bodies[0], "channel 8"))
	assert.False(t, strings.Contains(n.bodies[0], "huge sends"))
}

func TestNoAlertsNoNotification(t *testing.T) {
	n := &recordingNotifier{}
	a, err := NewAlerter(&config.AlerterConfig{
		CheckInterval: "1h",
		Rules:         []config.AlerterRule{{Name: "r", Category: "LATE", Operator: "!=", Threshold: 0}},
	}, report.NewBoard(1), n)
	require.NoError(t, err)

	a.Start()
	a.Stop()
	assert.Empty(t, n.subjects)
}

func TestNewAlerterRejects(t *testing.T) {
	board := report.NewBoard(1)
	_, err := NewAlerter(&config.AlerterConfig{CheckInterval: "soon"}, board, nil)
	assert.Error(t, err)
	_, err = NewAlerter(&config.AlerterConfig{CheckInterval: "1s", Rules: []config.AlerterRule{{Category: "bytes", Operator: ">"}}}, board, nil)
	assert.Error(t, err)
	_, err = NewAlerter(&config.AlerterConfig{CheckInterval: "1s", Rules: []config.AlerterRule{{Category: "late", Operator: "~"}}}, board, nil)
	assert.Error(t, err)
}
