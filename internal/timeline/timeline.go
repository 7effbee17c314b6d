// Package timeline implements the loop arithmetic that keeps the playback
// cursor, the decoder cursor and the external clock consistent across the
// wrap-around at the end of the clip.
package timeline

import "math"

// Wrap maps any integer onto the valid frame range [0, total).
// Negative inputs wrap positively (frame -1 is the last frame of the clip).
func Wrap(i, total int) int {
	if total <= 0 {
		return 0
	}
	return ((i % total) + total) % total
}

// CircularDistance returns the signed shortest-path distance from one frame
// index to another on the loop, in [-total/2, total/2]. At exactly half the
// loop the sign of the raw difference is kept, so distance(0,1) on a 2-frame
// loop is 1 while distance(1,0) is -1.
//
// This is the invariant that makes all forward/backward reasoning consistent
// across the loop boundary: Wrap(from+CircularDistance(from,to)) == to.
func CircularDistance(from, to, total int) int {
	if total <= 0 {
		return 0
	}
	d := Wrap(to, total) - Wrap(from, total)
	half := total / 2
	if d > half {
		d -= total
	}
	if d < -half {
		d += total
	}
	return d
}

// TimeToFrame converts a position in seconds to a frame index at the given
// rate. The result is not wrapped; callers decide clamp-or-wrap semantics.
func TimeToFrame(seconds, fps float64) int {
	return int(seconds * fps)
}

// FrameToTime converts a frame index to its nominal start time in seconds.
func FrameToTime(index int, fps float64) float64 {
	return float64(index) / fps
}

// ApplyOffset derives the video position from the audio position and the
// user-configured sync offset. A positive offset delays the video relative
// to the audio. The result is wrapped into [0, duration) in both directions:
// a position that falls before zero (a positive offset at file start) shows
// the last frames of the file (musical loop behavior), and a clock running
// past the clip duration loops back to the top of the file.
func ApplyOffset(audioSeconds, offsetSeconds, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	v := math.Mod(audioSeconds-offsetSeconds, duration)
	if v < 0 {
		v += duration
	}
	return v
}
