package mmwave

import (
	"math"

	"github.com/annzb/mmwave/internal/monitoring"
	"github.com/annzb/mmwave/internal/pointcloud"
)

type sorterState int

const (
	stateReadHeader sorterState = iota
	stateCheckTLVType
	stateReadObjStruct
	stateReadLogMagRange
	stateReadNoise
	stateReadAzimuth
	stateReadDoppler
	stateReadStats
	stateSwapBuffers
)

// sortLoop parses completed frames from the drain buffer. Each frame of
// detected objects yields exactly one published cloud; malformed frames are
// discarded whole and nothing is emitted for them.
func (h *Handler) sortLoop() {
	defer h.wg.Done()

	// Wait for the first completed frame before touching the drain buffer.
	// swapGen only ever increases, so a swap that races this wait is not
	// missed.
	h.mu.Lock()
	for h.swapGen == 0 && h.running.Load() {
		h.sortGo.Wait()
	}
	h.mu.Unlock()
	if !h.running.Load() {
		return
	}

	h.drainMu.Lock()
	var (
		state    = stateReadHeader
		data     = h.drainBuf.data
		hdr      frameHeader
		cursor   int
		tlvCount int
		tlvLen   uint32
	)

	discard := func(reason string) {
		monitoring.FramesDiscarded.WithLabelValues(reason).Inc()
		monitoring.Logf("mmwave sort: discarding frame %d: %s", hdr.FrameNumber, reason)
		state = stateSwapBuffers
	}

	for h.running.Load() {
		switch state {

		case stateReadHeader:
			// The buffer must hold at least version, totalPacketLen and
			// platform before the expected header size is known.
			if len(data) < 12 {
				discard(monitoring.DiscardShortHeader)
				break
			}
			hdr.Version = le32(data, 0)
			hdr.TotalPacketLen = le32(data, 4)
			hdr.Platform = le32(data, 8)

			size := headerSize(hdr.Version, hdr.Platform)
			if len(data) < size {
				discard(monitoring.DiscardShortHeader)
				break
			}
			hdr.FrameNumber = le32(data, 12)
			hdr.TimeCPUCycles = le32(data, 16)
			hdr.NumDetectedObj = le32(data, 20)
			hdr.NumTLVs = le32(data, 24)
			hdr.SubFrameNumber = 0
			if size == 32 {
				hdr.SubFrameNumber = le32(data, 28)
			}
			cursor = size

			// The buffer carries the next frame's magic word at its tail,
			// so a well-framed packet satisfies totalPacketLen == len-4.
			// Anything else is a frame with missing or excess bytes.
			if int(hdr.TotalPacketLen) != len(data)-4 {
				discard(monitoring.DiscardLengthMismatch)
				break
			}
			state = stateCheckTLVType

		case stateCheckTLVType:
			if tlvCount >= int(hdr.NumTLVs) {
				state = stateSwapBuffers
				break
			}
			tlvCount++
			if cursor+8 > len(data) {
				discard(monitoring.DiscardTruncatedTLV)
				break
			}
			tlvType := le32(data, cursor)
			tlvLen = le32(data, cursor+4)
			cursor += 8

			switch tlvType {
			case tlvNull:
				// stay in stateCheckTLVType
			case tlvDetectedPoints:
				state = stateReadObjStruct
			case tlvRangeProfile:
				state = stateReadLogMagRange
			case tlvNoiseProfile:
				state = stateReadNoise
			case tlvAzimuthHeatMap:
				state = stateReadAzimuth
			case tlvRangeDopplerHeatMap:
				state = stateReadDoppler
			case tlvStats:
				state = stateReadStats
			default:
				monitoring.Logf("mmwave sort: unknown TLV type %d in frame %d", tlvType, hdr.FrameNumber)
				state = stateReadHeader
			}

		case stateReadObjStruct:
			cloud, next := h.decodeDetectedObjects(data, &cursor, &hdr)
			if cloud != nil {
				h.pub.Publish(cloud)
				monitoring.CloudsPublished.Inc()
			} else if next == stateSwapBuffers {
				discard(monitoring.DiscardTruncatedTLV)
				break
			}
			state = next

		case stateReadLogMagRange, stateReadNoise, stateReadAzimuth, stateReadDoppler, stateReadStats:
			// Recognized but skipped payload kinds.
			if cursor+int(tlvLen) > len(data) {
				discard(monitoring.DiscardTruncatedTLV)
				break
			}
			cursor += int(tlvLen)
			state = stateCheckTLVType

		case stateSwapBuffers:
			h.drainMu.Unlock()
			h.signalAndAwaitSwap(h.sortGo, 1)
			if !h.running.Load() {
				return
			}
			h.drainMu.Lock()
			data = h.drainBuf.data
			cursor = 0
			tlvCount = 0
			state = stateReadHeader
		}
	}
	h.drainMu.Unlock()
}

// decodeDetectedObjects parses the detected-objects payload at *cursor,
// converts each record to Cartesian meters and applies the angle filter.
// It returns (nil, stateSwapBuffers) on a truncated payload; no partial cloud
// is ever produced.
func (h *Handler) decodeDetectedObjects(data []byte, cursor *int, hdr *frameHeader) (*pointcloud.Cloud, sorterState) {
	if *cursor+4 > len(data) {
		return nil, stateSwapBuffers
	}
	numObj := int(le16(data, *cursor))
	xyzQFormat := le16(data, *cursor+2)
	*cursor += 4

	const objSize = 12 // six signed 16-bit words
	if *cursor+numObj*objSize > len(data) {
		return nil, stateSwapBuffers
	}

	maxElevSq, maxAzRatio := h.cfg.angleRatios()
	scale := math.Pow(2, float64(xyzQFormat))

	points := make([]pointcloud.RadarPoint, 0, numObj)
	for i := 0; i < numObj; i++ {
		rangeIdx := lei16(data, *cursor)
		dopplerIdx := lei16(data, *cursor+2)
		peakVal := lei16(data, *cursor+4)
		xQ := lei16(data, *cursor+6)
		yQ := lei16(data, *cursor+8)
		zQ := lei16(data, *cursor+10)
		*cursor += objSize

		rangeM := float64(rangeIdx) * h.cfg.RangeIdxToMeters

		doppler := int(dopplerIdx)
		if doppler > h.cfg.NumDopplerBins/2-1 {
			doppler -= h.cfg.NumDopplerBins
		}
		dopplerMps := float64(doppler) * h.cfg.DopplerResolutionToMps

		intensityDb := 10 * math.Log10(float64(peakVal)+1)

		xM := float64(xQ) / scale
		yM := float64(yQ) / scale
		zM := float64(zQ) / scale

		// Sensor Y is forward, sensor -X is left, sensor Z is up.
		p := pointcloud.RadarPoint{
			X:         float32(yM),
			Y:         float32(-xM),
			Z:         float32(zM),
			Intensity: float32(intensityDb),
			Range:     float32(rangeM),
			Doppler:   float32(dopplerMps),
		}

		if keepPoint(p, maxElevSq, maxAzRatio) {
			points = append(points, p)
			monitoring.PointsKept.Inc()
		} else {
			monitoring.PointsDropped.Inc()
		}
	}

	return pointcloud.NewCloud(hdr.FrameNumber, points), stateCheckTLVType
}

// keepPoint applies the validity and angle filters in consumer axes (X
// forward, Y left, Z up). A threshold of -1 disables that filter.
func keepPoint(p pointcloud.RadarPoint, maxElevSq, maxAzRatio float64) bool {
	x := float64(p.X)
	y := float64(p.Y)
	z := float64(p.Z)

	if x == 0 {
		return false
	}
	if maxElevSq != -1 && z*z/(x*x+y*y) >= maxElevSq {
		return false
	}
	if maxAzRatio != -1 && math.Abs(y/x) >= maxAzRatio {
		return false
	}
	return true
}
