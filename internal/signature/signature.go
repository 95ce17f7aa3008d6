// Package signature binds a device/network fingerprint into a stable hash
// carried in access tokens, so the session guardian can detect mid-session
// drift without re-running the full risk engine.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"riskguard/internal/riskengine"
)

type canonicalForm struct {
	Browser  string `json:"browser"`
	OS       string `json:"os"`
	Screen   string `json:"screen"`
	Timezone string `json:"timezone"`
	IPPrefix string `json:"ip_prefix,omitempty"`
}

// Derive computes the behavior signature for a device fingerprint, bound
// optionally to an IP prefix.
func Derive(device riskengine.Device, ipPrefix string) string {
	form := canonicalForm{
		Browser:  device.BrowserBrand,
		OS:       device.OSFamily,
		Screen:   device.ScreenRaw,
		Timezone: device.Timezone,
		IPPrefix: ipPrefix,
	}
	raw, _ := json.Marshal(form)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Validate compares a token's bound signature against one derived from the
// current device/IP, reporting a mismatch reason when they differ.
func Validate(tokenSignature string, device riskengine.Device, ipPrefix string) (ok bool, reason string) {
	if tokenSignature == "" {
		return true, "" // tokens minted before signature binding was required
	}
	current := Derive(device, ipPrefix)
	if current != tokenSignature {
		return false, "behavior_signature_mismatch"
	}
	return true, ""
}
