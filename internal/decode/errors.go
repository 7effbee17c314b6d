package decode

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory classifies pipeline errors for telemetry. Decode failures
// inside the worker are never fatal (the worker wraps and retries), but
// knowing whether the file or the codec install is the problem matters when
// the drop counter starts climbing.
type ErrorCategory int

const (
	// ErrCategoryIO indicates file/demuxer failures (missing file, short read).
	ErrCategoryIO ErrorCategory = iota
	// ErrCategoryCodec indicates codec failures (decode errors, caps negotiation).
	ErrCategoryCodec
	// ErrCategoryUnknown indicates unclassified errors.
	ErrCategoryUnknown
)

func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryIO:
		return "io"
	case ErrCategoryCodec:
		return "codec"
	default:
		return "unknown"
	}
}

// ClassifyGstError categorizes a GStreamer error by message heuristics.
// go-gst's GError does not expose Domain(), so string matching is all we get.
func ClassifyGstError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}

	combined := strings.ToLower(gerr.Error()) + " " + strings.ToLower(gerr.DebugString())

	if containsAny(combined, []string{
		"codec", "decode", "format", "negotiation", "caps",
		"h264", "h265", "not negotiated", "no decoder", "missing plugin",
	}) {
		return ErrCategoryCodec
	}

	if containsAny(combined, []string{
		"no such file", "not found", "could not open", "resource",
		"read error", "stream error", "truncated",
	}) {
		return ErrCategoryIO
	}

	return ErrCategoryUnknown
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
