package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"riskguard/internal/riskengine"
)

func TestDeriveIsStableForSameInputs(t *testing.T) {
	device := riskengine.Canonicalize(riskengine.RawDevice{Browser: "Chrome 119", OS: "Windows 10", Screen: "1920x1080", Timezone: "UTC"})
	a := Derive(device, "203.0.113.0/24")
	b := Derive(device, "203.0.113.0/24")
	assert.Equal(t, a, b)
}

func TestValidateDetectsMismatch(t *testing.T) {
	device := riskengine.Canonicalize(riskengine.RawDevice{Browser: "Chrome 119", OS: "Windows 10", Screen: "1920x1080", Timezone: "UTC"})
	sig := Derive(device, "203.0.113.0/24")

	otherDevice := riskengine.Canonicalize(riskengine.RawDevice{Browser: "Firefox 120", OS: "Linux", Screen: "1280x720", Timezone: "UTC"})
	ok, reason := Validate(sig, otherDevice, "203.0.113.0/24")
	assert.False(t, ok)
	assert.Equal(t, "behavior_signature_mismatch", reason)
}

func TestDeriveDistinguishesSameClassDifferentResolution(t *testing.T) {
	a := riskengine.Canonicalize(riskengine.RawDevice{Browser: "Chrome 119", OS: "Windows 10", Screen: "1920x1080", Timezone: "UTC"})
	b := riskengine.Canonicalize(riskengine.RawDevice{Browser: "Chrome 119", OS: "Windows 10", Screen: "2560x1440", Timezone: "UTC"})
	assert.Equal(t, a.ScreenClass, b.ScreenClass, "both resolutions should bucket to the same screen class")
	assert.NotEqual(t, Derive(a, ""), Derive(b, ""), "exact resolution must still distinguish the signature within a class")
}

func TestValidateEmptySignatureAlwaysPasses(t *testing.T) {
	device := riskengine.Canonicalize(riskengine.RawDevice{})
	ok, reason := Validate("", device, "")
	assert.True(t, ok)
	assert.Empty(t, reason)
}
