package handlers

import (
	"github.com/gin-gonic/gin"

	"riskguard/internal/geoip"
	"riskguard/internal/policy"
	"riskguard/internal/riskengine"
)

// NewIPResolver builds the ipResolver LoginHandler uses to enrich a raw
// client IP with geo/ASN lookups and policy-list membership ahead of
// scoring; known-network membership itself is left to internal/stepup's
// Login, which has the principal's baseline in hand.
func NewIPResolver(geo *geoip.Resolver, pol *policy.Store) ipResolver {
	return func(c *gin.Context, ip string) riskengine.IPInfo {
		info := geo.Lookup(c.Request.Context(), ip)
		return riskengine.IPInfo{
			Addr: ip, Prefix: policy.Prefix(ip),
			ASN: info.ASN, ASNOrg: info.ASNOrg,
			City: info.City, Region: info.Region, Country: info.Country,
			HasGeo:    info.Found,
			IsCarrier: pol.IsCarrierASN(info.ASN),
			IsDenied:  pol.IsDenied(ip),
			IsAllowed: pol.IsAllowed(ip),
		}
	}
}
