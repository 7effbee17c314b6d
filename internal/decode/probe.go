package decode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/visiona/loopdeck/internal/media"
)

// fallbackFPS is used when the container reports no usable frame rate.
const fallbackFPS = 25.0

// Probe extracts clip metadata with ffprobe. The decoder pipeline needs the
// geometry up front to lock its output caps, and total_frames is derived
// once here and never recomputed.
func Probe(ctx context.Context, path string) (media.Metadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	out, err := exec.CommandContext(ctx, "ffprobe", args...).Output()
	if err != nil {
		return media.Metadata{}, fmt.Errorf("decode: ffprobe failed for %s: %w", path, err)
	}

	var probe probeResult
	if err := json.Unmarshal(out, &probe); err != nil {
		return media.Metadata{}, fmt.Errorf("decode: failed to parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return media.Metadata{}, fmt.Errorf("decode: container reports no duration: %w", err)
	}

	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}

		fps := parseFrameRate(stream.RFrameRate)
		if fps <= 0 {
			fps = parseFrameRate(stream.AvgFrameRate)
		}
		if fps <= 0 {
			slog.Warn("decode: no usable frame rate in container, using fallback",
				"path", path,
				"fallback_fps", fallbackFPS,
			)
			fps = fallbackFPS
		}

		meta, err := media.NewMetadata(stream.Width, stream.Height, fps, duration)
		if err != nil {
			return media.Metadata{}, fmt.Errorf("decode: invalid stream properties: %w", err)
		}

		slog.Info("decode: probed clip",
			"path", path,
			"resolution", meta.Resolution(),
			"fps", fps,
			"duration_s", duration,
			"total_frames", meta.TotalFrames,
			"codec", stream.CodecName,
		)
		return meta, nil
	}

	return media.Metadata{}, fmt.Errorf("decode: no video stream found in %s", path)
}

// probeResult matches the ffprobe JSON output structure.
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// parseFrameRate parses an ffprobe rational like "30000/1001" or "25/1".
func parseFrameRate(r string) float64 {
	if r == "" || r == "0/0" {
		return 0
	}
	parts := strings.SplitN(r, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}
