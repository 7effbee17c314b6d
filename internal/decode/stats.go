package decode

import (
	"math"
	"time"
)

// PreloadStats summarizes the synchronous preload decode that runs at load
// time, before the worker loop starts. The decode rate measured here is the
// best early predictor of whether the worker can stay ahead of real-time
// playback on this machine.
type PreloadStats struct {
	// FramesDecoded is the number of frames inserted during preload.
	FramesDecoded int
	// Duration is the wall time the preload took.
	Duration time.Duration
	// RateMean is the mean decode rate in frames per second.
	RateMean float64
	// RateStdDev is the standard deviation of the instantaneous decode rate.
	RateStdDev float64
	// RateMin is the slowest instantaneous decode rate observed.
	RateMin float64
	// RateMax is the fastest instantaneous decode rate observed.
	RateMax float64
	// Realtime is true when the mean decode rate exceeds the clip frame
	// rate with margin, i.e. the worker should keep up while playing.
	Realtime bool
}

// realtimeMargin is the decode-rate headroom required over the clip fps
// before preload reports the machine as realtime-capable.
const realtimeMargin = 1.25

// CalculatePreloadStats derives decode-rate statistics from per-frame
// completion timestamps.
func CalculatePreloadStats(frameTimes []time.Time, totalDuration time.Duration, clipFPS float64) *PreloadStats {
	n := len(frameTimes)
	if n == 0 || totalDuration <= 0 {
		return &PreloadStats{Duration: totalDuration}
	}

	rateMean := float64(n) / totalDuration.Seconds()

	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}

	stats := &PreloadStats{
		FramesDecoded: n,
		Duration:      totalDuration,
		RateMean:      rateMean,
		Realtime:      rateMean >= clipFPS*realtimeMargin,
	}
	if len(instantaneous) == 0 {
		return stats
	}

	min, max := instantaneous[0], instantaneous[0]
	var sum float64
	for _, r := range instantaneous {
		sum += r
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
	}
	mean := sum / float64(len(instantaneous))

	var variance float64
	for _, r := range instantaneous {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(instantaneous))

	stats.RateStdDev = math.Sqrt(variance)
	stats.RateMin = min
	stats.RateMax = max
	return stats
}
