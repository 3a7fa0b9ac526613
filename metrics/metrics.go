package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var namespace = "ephys"
var subsystem = "kwikstore"

var (
	// SamplesWrittenTotal counts continuous samples handed to channel group files
	SamplesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "samples_written_total",
		Help:      "Number of continuous samples written to channel group files",
	})

	// TimestampsWrittenTotal counts reconstructed timestamps flushed to files
	TimestampsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "timestamps_written_total",
		Help:      "Number of reconstructed timestamps flushed to channel group files",
	})

	// ScratchResizesTotal counts buffers larger than the conversion scratch
	ScratchResizesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "scratch_resizes_total",
		Help:      "Number of times the conversion scratch had to grow",
	})

	// SkippedWritesTotal stores the writes skipped because the target was not ready,
	// partitioned by kind (samples, event, spike)
	SkippedWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "skipped_writes_total",
		Help:      "Writes skipped because the target file or sink was not open",
	}, []string{"kind"})

	// EventsWrittenTotal stores the events forwarded to the event sink partitioned by type
	EventsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "events_written_total",
		Help:      "Events forwarded to the event sink partitioned by type",
	}, []string{"type"})

	// DroppedEventsTotal counts events that failed to decode
	DroppedEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "dropped_events_total",
		Help:      "Events dropped because their payload could not be decoded",
	})

	// SpikesWrittenTotal counts spike waveforms forwarded to the spike sink
	SpikesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "spikes_written_total",
		Help:      "Spike waveforms forwarded to the spike sink",
	})

	// OpenFiles is the number of channel group files currently open
	OpenFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "open_files",
		Help:      "Channel group files currently open",
	})

	// RecordingsTotal counts started recording segments
	RecordingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "recordings_total",
		Help:      "Recording segments started",
	})

	// TotalDiskUsageBytes is the disk space used under the recording root
	TotalDiskUsageBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "total_disk_usage_bytes",
		Help:      "Disk space used by the files under the recording root directory",
	})
)
