package riskengine

import "math"

// devicePenalty compares a current device fingerprint against a profile's
// baseline device, returning an additive penalty and an optional reason.
func devicePenalty(cur, base Device) (int, string) {
	penalty := 0
	reasons := []string{}

	if base.BrowserBrand != "" {
		if cur.BrowserBrand != base.BrowserBrand {
			penalty += 20
			reasons = append(reasons, "Browser brand changed")
		} else if abs(cur.BrowserVersion-base.BrowserVersion) > 1 {
			penalty += 5
			reasons = append(reasons, "Browser major version changed")
		}
	} else if base.BrowserRaw != "" && cur.BrowserRaw != base.BrowserRaw {
		penalty += 10
		reasons = append(reasons, "Browser fingerprint differs")
	}

	if base.OSFamily != "" && cur.OSFamily != base.OSFamily {
		penalty += 15
		reasons = append(reasons, "Operating system family changed")
	}

	if base.ScreenW != 0 || base.ScreenH != 0 {
		if screenWithinTolerance(cur.ScreenW, cur.ScreenH, base.ScreenW, base.ScreenH) {
			if cur.ScreenClass == base.ScreenClass {
				// within tolerance, same class: no penalty
			} else {
				penalty += 5
				reasons = append(reasons, "Screen class differs slightly")
			}
		} else if cur.ScreenClass != base.ScreenClass {
			penalty += 15
			reasons = append(reasons, "Screen class changed")
		} else if cur.ScreenRaw != base.ScreenRaw {
			penalty += 5
			reasons = append(reasons, "Screen resolution differs")
		}
	}

	if base.Timezone != "" && cur.Timezone != base.Timezone {
		penalty += 10
		reasons = append(reasons, "Timezone changed")
	}

	if penalty == 0 {
		return 0, ""
	}
	return penalty, reasons[0]
}

// haversine returns the great-circle distance between two points in km, or
// +Inf if either point is missing a fix.
func haversine(g1, g2 Geo) float64 {
	if !g1.HasFix || !g2.HasFix {
		return math.Inf(1)
	}
	const earthRadiusKm = 6371.0
	lat1, lon1 := g1.Lat*math.Pi/180, g1.Lon*math.Pi/180
	lat2, lon2 := g2.Lat*math.Pi/180, g2.Lon*math.Pi/180
	dLat := lat2 - lat1
	dLon := lon2 - lon1
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// geoPenalty scores a geolocation observation against a profile baseline.
// Tolerance widens with reported accuracy, within [100m, 500m]; beyond
// 500m accuracy the fix itself is treated as unreliable and the coarser
// city/region/country comparison is blended in, replacing the flat
// inaccuracy penalty whenever it would score higher.
func geoPenalty(cur, base Geo, curCity, curRegion, curCountry, baseCity, baseRegion, baseCountry string) (int, string) {
	if !base.HasFix {
		return 0, ""
	}
	if cur.Accuracy > 500 {
		cityPenalty, cityReason := cityFallbackPenalty(curCity, curRegion, curCountry, baseCity, baseRegion, baseCountry)
		if cityPenalty > 10 {
			return cityPenalty, cityReason
		}
		return 10, "Geo accuracy too low"
	}
	tolM := clampF(cur.Accuracy, 100, 500)
	distKm := haversine(cur, base)
	distM := distKm * 1000
	if distM <= tolM {
		return 0, ""
	}
	overM := distM - tolM
	penalty := 10 + int(math.Min(20, overM/100))
	return penalty, "Geo differs by more than tolerance"
}

// cityFallbackPenalty scores coarse city/region/country agreement when a
// precise geo fix is unavailable or was never captured in the baseline.
func cityFallbackPenalty(curCity, curRegion, curCountry, baseCity, baseRegion, baseCountry string) (int, string) {
	if baseCity == "" && baseRegion == "" && baseCountry == "" {
		return 15, "No location baseline on file"
	}
	if curCountry != baseCountry {
		return 10, "Country differs from baseline"
	}
	if curCity == baseCity {
		return 0, ""
	}
	if curRegion == baseRegion {
		return 3, "City differs within known region"
	}
	return 7, "Region differs from baseline"
}

func zscorePenalty(value float64, base ZBaseline, fallbackDiffThresholds [3]float64, fallbackPoints [3]int, zThresholds [3]float64, zPoints [3]int) (int, bool) {
	if base.HasData && base.Var > 1e-6 {
		std := math.Sqrt(base.Var)
		z := math.Abs(value-base.Mean) / std
		for i, t := range zThresholds {
			if z > t {
				return zPoints[i], true
			}
		}
		return 0, true
	}
	if !base.HasData {
		return 0, false
	}
	diff := math.Abs(value - base.Mean)
	for i, t := range fallbackDiffThresholds {
		if diff > t {
			return fallbackPoints[i], true
		}
	}
	return 0, true
}

// typingPenalty scores WPM/error-rate/key-timing deviation from baseline,
// preferring a z-score comparison once the baseline has enough variance
// history and otherwise falling back to an absolute-difference ladder.
func typingPenalty(cur TypingMetrics, base Baseline) (int, []string) {
	if !cur.HasData {
		return 0, nil
	}
	total := 0
	var reasons []string

	if p, used := zscorePenalty(cur.WPM, base.TypingWPM,
		[3]float64{30, 20, 10}, [3]int{30, 20, 10},
		[3]float64{3, 2, 1.5}, [3]int{25, 15, 8}); used && p > 0 {
		total += p
		reasons = append(reasons, "Typing speed deviates from baseline")
	}
	if p, used := zscorePenalty(cur.ErrorRate, base.TypingErr,
		[3]float64{0.2, 0.1, 0.05}, [3]int{20, 10, 5},
		[3]float64{3, 2, 1.5}, [3]int{20, 12, 6}); used && p > 0 {
		total += p
		reasons = append(reasons, "Typing error rate deviates from baseline")
	}
	if p, used := zscorePenalty(cur.KeyTimingMs, base.TypingTiming,
		[3]float64{200, 100, 50}, [3]int{25, 15, 5},
		[3]float64{3, 2, 1.5}, [3]int{20, 12, 6}); used && p > 0 {
		total += p
		reasons = append(reasons, "Key timing deviates from baseline")
	}
	return total, reasons
}

// mousePenalty scores pointer path length and click-count deviation.
func mousePenalty(cur MouseMetrics, base Baseline) (int, []string) {
	if !cur.HasData {
		return 0, nil
	}
	total := 0
	var reasons []string

	if p, used := zscorePenalty(cur.PathLength, base.MousePath,
		[3]float64{50, 10, 0}, [3]int{15, 5, 0},
		[3]float64{3, 2, 999}, [3]int{12, 7, 0}); used && p > 0 {
		total += p
		reasons = append(reasons, "Pointer path length deviates from baseline")
	}
	if p, used := zscorePenalty(cur.Clicks, base.MouseClicks,
		[3]float64{5, 2, 0}, [3]int{10, 5, 0},
		[3]float64{3, 2, 999}, [3]int{10, 6, 0}); used && p > 0 {
		total += p
		reasons = append(reasons, "Click count deviates from baseline")
	}
	return total, reasons
}
