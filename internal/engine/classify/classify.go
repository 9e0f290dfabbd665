// Package classify filters the computation stream down to the topology
// declarations worth reporting.
package classify

import (
	"time"

	"CommSpectra/internal/engine/bucket"
	"CommSpectra/internal/model"
)

// Classifier keeps only records logged by the Reference worker. Every worker
// logs the same topology, so one worker's copy is enough.
type Classifier struct {
	Reference   int
	Granularity time.Duration
}

// Classify returns the report for a channel or comm-channel declaration.
// Every other record is dropped (ok is false).
func (c Classifier) Classify(rec model.ComputeRecord) (report model.Report, ok bool) {
	if rec.Worker != c.Reference {
		return report, false
	}

	b := bucket.Of(rec.Time, c.Granularity)
	switch ev := rec.Event.(type) {
	case model.ChannelsEvent:
		return model.Report{
			Category: model.CategoryChannel,
			Key:      model.Key{Channel: ev.ID, Bucket: b},
			Subject:  ev.String(),
			Diff:     1,
		}, true
	case model.CommChannelsEvent:
		return model.Report{
			Category: model.CategoryCommChannel,
			Key:      model.Key{Channel: ev.Identifier, Bucket: b},
			Subject:  ev.String(),
			Diff:     1,
		}, true
	}
	return report, false
}
