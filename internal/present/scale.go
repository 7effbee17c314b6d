package present

import "fmt"

// ScaleMode selects the aspect policy the window collaborator applies when
// fitting video to the output surface.
type ScaleMode int

const (
	// ScaleLetterbox fits inside the window preserving aspect (default).
	ScaleLetterbox ScaleMode = iota
	// ScaleStretch fills the window ignoring aspect.
	ScaleStretch
	// ScaleCrop fills the window preserving aspect, cropping edges.
	ScaleCrop
)

// ParseScaleMode parses a CLI/config scale mode value.
func ParseScaleMode(s string) (ScaleMode, error) {
	switch s {
	case "letterbox":
		return ScaleLetterbox, nil
	case "stretch":
		return ScaleStretch, nil
	case "crop":
		return ScaleCrop, nil
	default:
		return ScaleLetterbox, fmt.Errorf("present: invalid scale mode %q (letterbox|stretch|crop)", s)
	}
}

func (m ScaleMode) String() string {
	switch m {
	case ScaleStretch:
		return "stretch"
	case ScaleCrop:
		return "crop"
	default:
		return "letterbox"
	}
}

// Next cycles letterbox → stretch → crop → letterbox.
func (m ScaleMode) Next() ScaleMode {
	switch m {
	case ScaleLetterbox:
		return ScaleStretch
	case ScaleStretch:
		return ScaleCrop
	default:
		return ScaleLetterbox
	}
}
