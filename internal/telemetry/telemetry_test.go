package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDriftScanFlagsWorseningTrend(t *testing.T) {
	scores := map[string][]int{
		"improving": {80, 70, 20, 15, 10},
		"worsening": {10, 15, 20, 60, 80},
		"too_short": {10, 20},
	}
	reports := DriftScan(scores)
	assert.Len(t, reports, 1)
	assert.Equal(t, "worsening", reports[0].PrincipalID)
}
