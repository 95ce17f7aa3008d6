package riskengine

import (
	"regexp"
	"strconv"
	"strings"
)

var explicitBrowserRe = regexp.MustCompile(`(?i)^([A-Za-z]+)\s+(\d+)`)

// browserFromUA extracts a (brand, majorVersion) pair by sniffing a raw
// User-Agent string, checked in the same brand precedence order a real
// browser sniffer uses: Edge and Opera embed "Chrome" in their UA strings
// and must be checked before it.
func browserFromUA(ua string) (string, int) {
	type probe struct {
		marker string
		brand  string
	}
	probes := []probe{
		{"edg/", "edge"},
		{"opr/", "opera"},
		{"chrome/", "chrome"},
		{"firefox/", "firefox"},
		{"safari/", "safari"},
	}
	lower := strings.ToLower(ua)
	for _, p := range probes {
		idx := strings.Index(lower, p.marker)
		if idx < 0 {
			continue
		}
		if p.brand == "safari" && strings.Contains(lower, "chrome/") {
			continue // Chrome UAs also contain "Safari/"
		}
		rest := lower[idx+len(p.marker):]
		return p.brand, leadingInt(rest)
	}
	return "", 0
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

// parseBrowser resolves brand + major version from either an explicit
// "Brand NN" client-reported string or, failing that, a raw User-Agent.
func parseBrowser(raw, userAgent string) (string, int) {
	if m := explicitBrowserRe.FindStringSubmatch(strings.TrimSpace(raw)); m != nil {
		v, _ := strconv.Atoi(m[2])
		return strings.ToLower(m[1]), v
	}
	if userAgent != "" {
		return browserFromUA(userAgent)
	}
	return "", 0
}

// canonicalOS maps a raw OS string or User-Agent to one of a small family
// set: windows, macos, android, ios, linux. Returns "" when unrecognised.
func canonicalOS(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "windows"):
		return "windows"
	case strings.Contains(lower, "mac os") || strings.Contains(lower, "macos") || strings.Contains(lower, "os x"):
		return "macos"
	case strings.Contains(lower, "android"):
		return "android"
	case strings.Contains(lower, "iphone") || strings.Contains(lower, "ipad") || strings.Contains(lower, "ios"):
		return "ios"
	case strings.Contains(lower, "linux"):
		return "linux"
	default:
		return ""
	}
}

var screenRe = regexp.MustCompile(`^(\d+)x(\d+)$`)

// parseScreen parses a "WxH" string into width/height. Returns ok=false if
// the string is malformed.
func parseScreen(raw string) (w, h int, ok bool) {
	m := screenRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, 0, false
	}
	w, _ = strconv.Atoi(m[1])
	h, _ = strconv.Atoi(m[2])
	return w, h, true
}

// screenClass buckets a resolution into a coarse device class used when an
// exact-pixel comparison is too strict.
func screenClass(w, h int) string {
	switch {
	case w == 0 && h == 0:
		return ""
	case w <= 480:
		return "mobile-small"
	case w <= 768:
		return "mobile"
	case w <= 1280:
		return "tablet"
	default:
		return "desktop"
	}
}

// screenWithinTolerance reports whether two resolutions differ by at most
// 100px on each axis.
func screenWithinTolerance(w1, h1, w2, h2 int) bool {
	return abs(w1-w2) <= 100 && abs(h1-h2) <= 100
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Canonicalize turns a raw device fingerprint into its normalised form.
func Canonicalize(raw RawDevice) Device {
	brand, version := parseBrowser(raw.Browser, raw.UserAgent)
	w, h, _ := parseScreen(raw.Screen)
	return Device{
		BrowserBrand:   brand,
		BrowserVersion: version,
		OSFamily:       canonicalOS(raw.OS),
		ScreenW:        w,
		ScreenH:        h,
		ScreenClass:    screenClass(w, h),
		Timezone:       strings.TrimSpace(raw.Timezone),
		BrowserRaw:     raw.Browser,
		OSRaw:          raw.OS,
		ScreenRaw:      raw.Screen,
	}
}
