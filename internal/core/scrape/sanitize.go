package scrape

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SanitizeOptions bundles the run-scoped naming configuration so Sanitize
// stays a pure function.
type SanitizeOptions struct {
	// VolumeOnly names items by their extracted volume/episode number
	// instead of the full title.
	VolumeOnly bool
	// PadWidth is the minimum digit width for zero-padding whole volume
	// numbers. Values below 1 fall back to 2.
	PadWidth int
}

var (
	unsafeChars  = strings.NewReplacer("<", "_", ">", "_", ":", "_", "\"", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_")
	reWhitespace = regexp.MustCompile(`\s+`)
)

// volumePatterns are tried in priority order; the 第-prefixed forms must
// come first since the bare forms also match inside them.
var volumePatterns = []struct {
	re     *regexp.Regexp
	prefix string
	unit   string
}{
	{regexp.MustCompile(`第(\d+(?:\.\d+)?)巻`), "第", "巻"},
	{regexp.MustCompile(`第(\d+(?:\.\d+)?)話`), "第", "話"},
	{regexp.MustCompile(`(\d+(?:\.\d+)?)巻`), "", "巻"},
	{regexp.MustCompile(`(\d+(?:\.\d+)?)話`), "", "話"},
}

// Sanitize converts an arbitrary note title into a filesystem-safe name.
// In volume-only mode it extracts the volume/episode number first, falling
// back to the default sanitization when no pattern matches.
func Sanitize(title string, opts SanitizeOptions) string {
	if opts.VolumeOnly {
		if s, ok := volumeName(title, opts.PadWidth); ok {
			return s
		}
	}
	return sanitizeDefault(title)
}

func sanitizeDefault(title string) string {
	s := unsafeChars.Replace(title)
	s = reWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func volumeName(title string, pad int) (string, bool) {
	if pad < 1 {
		pad = 2
	}
	for _, p := range volumePatterns {
		m := p.re.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		n := m[1]
		// A decimal number like 3.5 is kept verbatim; zero padding only
		// applies to whole numbers.
		if strings.Contains(n, ".") {
			return p.prefix + n + p.unit, true
		}
		v, err := strconv.Atoi(n)
		if err != nil {
			continue
		}
		return fmt.Sprintf("%s%0*d%s", p.prefix, pad, v, p.unit), true
	}
	return "", false
}
