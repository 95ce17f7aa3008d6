package riskengine

// Thresholds carries the two score cutoffs that separate low/medium/high.
// Policy resolution (env parsing, defaults) lives in internal/policy; this
// package only consumes the resolved integers.
type Thresholds struct {
	Medium int
	High   int
}

// carrierFactor down-weights IP-derived penalties when the network is a
// known mobile-carrier ASN, since carrier NAT churn makes IP-prefix
// continuity an unreliable signal for those users.
const carrierFactor = 0.3

func scaled(points int, ip IPInfo) int {
	if ip.IsCarrier {
		return int(float64(points) * carrierFactor)
	}
	return points
}

// ScoreLogin scores a login-time challenge against a principal's baseline.
// It never errors on malformed or absent signals -- missing data is scored
// as a penalty and surfaced via MissingSignals, never rejected outright.
func ScoreLogin(ch Challenge, ip IPInfo, base Baseline, th Thresholds) Result {
	score := 0
	missing := 0
	var reasons []string

	add := func(p int, reason string) {
		if p <= 0 {
			return
		}
		score += p
		if reason != "" {
			reasons = append(reasons, reason)
		}
	}

	if !base.HasProfile {
		add(20, "No baseline profile on file")
		missing++
	}
	if !ch.HasBehavioralChallenge {
		add(15, "No behavioral challenge completed")
		missing++
	}

	geoApplied := false
	if ch.HasGeo && base.HasProfile && base.Geo.HasFix {
		p, reason := geoPenalty(ch.Geo, base.Geo, ip.City, ip.Region, ip.Country, base.IPCity, base.IPRegion, base.IPCountry)
		add(p, reason)
		geoApplied = true
	}
	if !geoApplied {
		p, reason := cityFallbackPenalty(ip.City, ip.Region, ip.Country, base.IPCity, base.IPRegion, base.IPCountry)
		add(p, reason)
		if !ch.HasGeo {
			missing++
		}
	}

	if !ch.HasDevice {
		add(20, "No device fingerprint supplied")
		missing++
	} else {
		device := Canonicalize(ch.Device)
		if device.BrowserBrand == "" || device.OSFamily == "" || device.ScreenW == 0 || device.Timezone == "" {
			add(10, "Device fingerprint missing core fields")
		}
		if base.HasProfile {
			p, reason := devicePenalty(device, base.Device)
			add(p, reason)
		}
	}

	if base.HasProfile {
		if p, rs := typingPenalty(ch.Typing, base); p > 0 {
			score += p
			reasons = append(reasons, rs...)
		}
		if p, rs := mousePenalty(ch.Mouse, base); p > 0 {
			score += p
			reasons = append(reasons, rs...)
		}
	}

	if ch.IP == "" {
		add(5, "No IP address observed")
		missing++
	} else {
		if ip.IsDenied {
			add(25, "IP matches denylist")
		} else if !ip.IsAllowed {
			add(scaled(5, ip), "IP outside allowlist")
		}
		if ip.IsKnown {
			score -= 7
			if score < 0 {
				score = 0
			}
		} else {
			add(scaled(3, ip), "Network not previously seen")
		}
		if ip.IsCarrier {
			reasons = append(reasons, "Carrier network, IP signal de-weighted")
		}
	}

	if missing >= 2 && score < 45 {
		score = 45
	}
	if missing >= 3 && score < 65 {
		score = 65
	}

	if ch.Passive.HasData {
		if ch.Passive.ScrollPct < 10 {
			score += 2
		}
		if ch.Passive.DwellMs < 2000 {
			score += 2
		}
	}

	score = clamp(score, 0, 100)
	return Result{
		Score:          score,
		Level:          levelFor(score, th.Medium, th.High),
		Reasons:        reasons,
		MissingSignals: missing,
	}
}

// ScoreSession scores in-session telemetry at reduced weight relative to a
// full login challenge: device/geo penalties are halved and the denylist
// penalty is capped lower, reflecting that an established session already
// carries some trust.
func ScoreSession(tel SessionTelemetry, ch Challenge, ip IPInfo, base Baseline, th Thresholds) Result {
	score := 0
	var reasons []string

	add := func(p int, reason string) {
		if p <= 0 {
			return
		}
		score += p
		if reason != "" {
			reasons = append(reasons, reason)
		}
	}

	if base.HasProfile && ch.HasDevice {
		device := Canonicalize(ch.Device)
		p, reason := devicePenalty(device, base.Device)
		add(p/2, reason)
	}
	if base.HasProfile && ch.HasGeo && base.Geo.HasFix {
		p, reason := geoPenalty(ch.Geo, base.Geo, ip.City, ip.Region, ip.Country, base.IPCity, base.IPRegion, base.IPCountry)
		add(p/2, reason)
	}

	if ch.IP == "" {
		add(3, "No IP address observed")
	} else {
		if ip.IsDenied {
			add(20, "IP matches denylist")
		} else if !ip.IsAllowed {
			add(scaled(3, ip), "IP outside allowlist")
		}
		if !ip.IsKnown {
			add(scaled(3, ip), "Network not previously seen")
		}
	}

	if tel.IdleJitterMs > 3000 {
		add(5, "Idle jitter above baseline")
	}
	if tel.PointerSpeedStd > 1.5 {
		add(5, "Pointer speed variance above baseline")
	}
	if tel.NavBackForward > 5 {
		add(3, "Excessive back/forward navigation")
	}

	score = clamp(score, 0, 100)
	return Result{
		Score:   score,
		Level:   levelFor(score, th.Medium, th.High),
		Reasons: reasons,
	}
}
