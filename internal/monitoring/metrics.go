package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters. Registered on the default registry so cmd/mmwave can
// expose them with promhttp without additional plumbing.
var (
	SerialBytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mmwave_serial_bytes_read_total",
		Help: "Bytes consumed from the data serial port, including resync bytes.",
	})

	FramesFramed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mmwave_frames_framed_total",
		Help: "Frames delimited by the reader via magic word detection.",
	})

	FramesDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mmwave_frames_discarded_total",
		Help: "Frames discarded by the sorter before any cloud was emitted.",
	}, []string{"reason"})

	CloudsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mmwave_clouds_published_total",
		Help: "Point clouds handed to the publisher.",
	})

	PointsKept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mmwave_points_kept_total",
		Help: "Detected objects that survived angle and validity filtering.",
	})

	PointsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mmwave_points_dropped_total",
		Help: "Detected objects removed by angle or validity filtering.",
	})
)

// Discard reasons used as the label on FramesDiscarded.
const (
	DiscardLengthMismatch = "length_mismatch"
	DiscardShortHeader    = "short_header"
	DiscardTruncatedTLV   = "truncated_tlv"
)
