package eventbus

import (
	"time"

	"github.com/pilarhub/eventcore/pkg/metrics"
)

// Recorder receives bus counters.
type Recorder interface {
	RecordPublished()
	RecordDispatched(latency time.Duration)
	RecordHandlerFailure()
	RecordError()
}

// NoOpMetrics is a Recorder that discards everything.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordPublished()               {}
func (NoOpMetrics) RecordDispatched(time.Duration) {}
func (NoOpMetrics) RecordHandlerFailure()          {}
func (NoOpMetrics) RecordError()                   {}

var (
	_ Recorder = NoOpMetrics{}
	_ Recorder = (*metrics.Collector)(nil)
)
