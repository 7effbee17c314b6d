package config

import (
	"fmt"
	"strconv"
)

// Usage is printed for -h/--help and on argument errors.
const Usage = `usage: loopdeck <video_file> [options]

options:
  -o, --offset <ms>   sync offset in milliseconds; positive delays the
                      video relative to audio (default 0.0)
  -f, --fullscreen    borderless fullscreen on the primary display
  -s, --scale <mode>  aspect policy: letterbox|stretch|crop (default letterbox)
  -v, --verbose       debug logging
  -h, --help          show this help and exit
`

// ErrHelpRequested is returned by ParseArgs when -h/--help is present;
// the caller prints Usage and exits 0.
var ErrHelpRequested = fmt.Errorf("config: help requested")

// ParseArgs applies command-line arguments over cfg. The video file is
// positional and comes first; flags follow.
func ParseArgs(cfg *Config, args []string) error {
	seenPositional := false
	i := 0
	for i < len(args) {
		arg := args[i]
		switch arg {
		case "-h", "--help":
			return ErrHelpRequested

		case "-o", "--offset":
			i++
			if i >= len(args) {
				return fmt.Errorf("config: %s requires a value", arg)
			}
			ms, err := strconv.ParseFloat(args[i], 64)
			if err != nil {
				return fmt.Errorf("config: invalid offset %q: %w", args[i], err)
			}
			cfg.OffsetMs = ms

		case "-f", "--fullscreen":
			cfg.Fullscreen = true

		case "-s", "--scale":
			i++
			if i >= len(args) {
				return fmt.Errorf("config: %s requires a value", arg)
			}
			cfg.ScaleMode = args[i]

		case "-v", "--verbose":
			cfg.Verbose = true

		default:
			if len(arg) > 1 && arg[0] == '-' {
				return fmt.Errorf("config: unknown option %q", arg)
			}
			if seenPositional {
				return fmt.Errorf("config: unexpected argument %q", arg)
			}
			cfg.VideoPath = arg
			seenPositional = true
		}
		i++
	}
	return nil
}
