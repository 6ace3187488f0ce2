package channel

import (
	"github.com/rcrowley/go-metrics"
)

// directionStats collects the traffic statistics of one ring buffer.
// The metrics live in the registry of the owning channel.
type directionStats struct {
	framesWritten metrics.Counter
	framesRead    metrics.Counter
	bytesWritten  metrics.Counter
	bytesRead     metrics.Counter
	spaceWaits    metrics.Counter
	dataWaits     metrics.Counter
	interrupted   metrics.Counter
	frameSizes    metrics.Histogram
}

func newDirectionStats(name string, registry metrics.Registry) *directionStats {
	return &directionStats{
		framesWritten: metrics.GetOrRegisterCounter(name+".frames.written", registry),
		framesRead:    metrics.GetOrRegisterCounter(name+".frames.read", registry),
		bytesWritten:  metrics.GetOrRegisterCounter(name+".bytes.written", registry),
		bytesRead:     metrics.GetOrRegisterCounter(name+".bytes.read", registry),
		spaceWaits:    metrics.GetOrRegisterCounter(name+".waits.space", registry),
		dataWaits:     metrics.GetOrRegisterCounter(name+".waits.data", registry),
		interrupted:   metrics.GetOrRegisterCounter(name+".interrupted", registry),
		frameSizes: metrics.GetOrRegisterHistogram(name+".frames.size", registry,
			metrics.NewExpDecaySample(1028, 0.015)),
	}
}

// fill copies the statistics into info
func (s *directionStats) fill(info *DirectionInfo) {
	sizes := s.frameSizes.Snapshot()

	info.FramesWritten = s.framesWritten.Count()
	info.FramesRead = s.framesRead.Count()
	info.BytesWritten = s.bytesWritten.Count()
	info.BytesRead = s.bytesRead.Count()
	info.SpaceWaits = s.spaceWaits.Count()
	info.DataWaits = s.dataWaits.Count()
	info.Interrupted = s.interrupted.Count()
	info.MeanFrameSize = sizes.Mean()
	info.MaxFrameSize = sizes.Max()
	info.P99FrameSize = sizes.Percentile(0.99)
}
