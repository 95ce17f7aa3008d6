package riskengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreLogin_NoBaselineEscalates(t *testing.T) {
	th := Thresholds{Medium: 40, High: 60}
	ch := Challenge{
		Device:                 RawDevice{Browser: "Chrome 119", OS: "Windows 10", Screen: "1920x1080", Timezone: "UTC"},
		HasDevice:              true,
		IP:                     "203.0.113.10",
		HasBehavioralChallenge: false,
	}
	ip := IPInfo{Addr: ch.IP, City: "", Country: ""}
	base := Baseline{HasProfile: false}

	res := ScoreLogin(ch, ip, base, th)
	assert.GreaterOrEqual(t, res.Score, 45, "missing profile, challenge and geo should hit the escalation floor")
	assert.Equal(t, LevelHigh, res.Level)
}

func TestScoreLogin_KnownGoodLoginStaysLow(t *testing.T) {
	th := Thresholds{Medium: 40, High: 60}
	device := RawDevice{Browser: "Chrome 119", OS: "Windows 10", Screen: "1920x1080", Timezone: "UTC"}
	ch := Challenge{
		Device:                 device,
		HasDevice:              true,
		Geo:                    Geo{Lat: 40.0, Lon: -73.0, Accuracy: 50, HasFix: true},
		HasGeo:                 true,
		IP:                     "203.0.113.10",
		HasBehavioralChallenge: true,
		Typing:                 TypingMetrics{WPM: 60, ErrorRate: 0.02, KeyTimingMs: 120, HasData: true},
		Mouse:                  MouseMetrics{PathLength: 500, Clicks: 10, HasData: true},
	}
	ip := IPInfo{Addr: ch.IP, IsKnown: true, IsAllowed: true}
	base := Baseline{
		HasProfile: true,
		Device:     Canonicalize(device),
		Geo:        Geo{Lat: 40.0001, Lon: -73.0001, HasFix: true},
		TypingWPM:  ZBaseline{Mean: 59, Var: 25, HasData: true},
		TypingErr:  ZBaseline{Mean: 0.02, Var: 0.0001, HasData: true},
		TypingTiming: ZBaseline{Mean: 118, Var: 100, HasData: true},
		MousePath:  ZBaseline{Mean: 505, Var: 400, HasData: true},
		MouseClicks: ZBaseline{Mean: 10, Var: 4, HasData: true},
	}

	res := ScoreLogin(ch, ip, base, th)
	assert.Equal(t, LevelLow, res.Level)
}

func TestCarrierASNDeweightsIPSignal(t *testing.T) {
	ip := IPInfo{IsCarrier: true}
	assert.Equal(t, 1, scaled(5, ip))
	ip2 := IPInfo{IsCarrier: false}
	assert.Equal(t, 5, scaled(5, ip2))
}

func TestHaversineMissingFixIsInfinite(t *testing.T) {
	g1 := Geo{HasFix: true, Lat: 0, Lon: 0}
	g2 := Geo{HasFix: false}
	assert.True(t, haversine(g1, g2) > 1e9)
}

func TestCityFallbackPenalty(t *testing.T) {
	p, _ := cityFallbackPenalty("NYC", "NY", "US", "", "", "")
	assert.Equal(t, 15, p)

	p, _ = cityFallbackPenalty("LA", "CA", "US", "NYC", "NY", "US")
	assert.Equal(t, 7, p)

	p, _ = cityFallbackPenalty("NYC", "NY", "US", "NYC", "NY", "US")
	assert.Equal(t, 0, p)
}

func TestGeoPenaltyBlendsCityFallbackWhenAccuracyLow(t *testing.T) {
	cur := Geo{Lat: 40.0, Lon: -73.0, Accuracy: 600, HasFix: true}
	base := Geo{Lat: 40.0, Lon: -73.0, HasFix: true}

	p, reason := geoPenalty(cur, base, "LA", "CA", "US", "NYC", "NY", "US")
	assert.Equal(t, 10, p, "region-differs fallback penalty (7) does not exceed the flat inaccuracy penalty")
	assert.Equal(t, "Geo accuracy too low", reason)

	p, reason = geoPenalty(cur, base, "NYC", "NY", "US", "", "", "")
	assert.Equal(t, 15, p, "no location baseline (15) should replace the flat 10-point penalty")
	assert.Equal(t, "No location baseline on file", reason)
}

func TestScreenClassBuckets(t *testing.T) {
	assert.Equal(t, "mobile-small", screenClass(360, 640))
	assert.Equal(t, "desktop", screenClass(1920, 1080))
}

func TestParseBrowserExplicitBeatsUA(t *testing.T) {
	brand, ver := parseBrowser("Chrome 119", "Mozilla/5.0 Edg/100.0")
	assert.Equal(t, "chrome", brand)
	assert.Equal(t, 119, ver)
}

func TestParseBrowserFallsBackToUA(t *testing.T) {
	brand, ver := parseBrowser("", "Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 (KHTML, like Gecko) Edg/100.5 Safari/537.36")
	assert.Equal(t, "edge", brand)
	assert.Equal(t, 100, ver)
}
