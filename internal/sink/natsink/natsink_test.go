package natsink

import (
	"encoding/json"
	"testing"
	"time"

	"CommSpectra/internal/config"
	"CommSpectra/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMsg(t *testing.T) {
	runID := uuid.NewString()
	r := model.Report{Category: model.CategoryLate, Key: model.Key{Channel: 7, Bucket: 5 * time.Second}, Value: 50}

	msg, err := newMsg("cs.reports", runID, r)
	require.NoError(t, err)
	assert.Equal(t, "cs.reports.late", msg.Subject)
	assert.Equal(t, runID, msg.Header.Get(RunIDHeader))

	var doc model.ReportDoc
	require.NoError(t, json.Unmarshal(msg.Data, &doc))
	assert.Equal(t, r.Doc(), doc)
}

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "x.comm_channel", subjectFor("x", model.CategoryCommChannel))
}

func TestNewSinkUnreachable(t *testing.T) {
	_, err := NewSink(config.NATSConfig{URL: "nats://127.0.0.1:1"}, "run")
	assert.Error(t, err)
}

func TestDecodeMsgRoundTrip(t *testing.T) {
	r := model.Report{Category: model.CategorySend, Key: model.Key{Channel: 1, Bucket: time.Second}, Value: 42}
	msg, err := newMsg(defaultSubject, "run-7", r)
	require.NoError(t, err)

	runID, doc, err := decodeMsg(msg)
	require.NoError(t, err)
	assert.Equal(t, "run-7", runID)
	assert.Equal(t, r.Doc(), doc)

	msg.Data = []byte("{")
	_, _, err = decodeMsg(msg)
	assert.Error(t, err)
}
