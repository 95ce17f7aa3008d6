// Package policy resolves the environment-driven thresholds, network lists
// and cookie rules that the rest of the service treats as configuration,
// following the teacher's internal/config env-loading idiom.
package policy

import (
	"net"
	"os"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store is the resolved, hot-path-cheap view of risk policy.
type Store struct {
	HighThreshold   int
	MediumThreshold int

	denyNets  []*net.IPNet
	allowNets []*net.IPNet
	carrierASNs map[string]bool

	PromotionThreshold int
	DecayDays          int

	JWTSecret     string
	CookieDomain  string
	CookieSecure  bool

	prefixCache *lru.Cache[string, bool]
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseCIDRList(raw string) []*net.IPNet {
	var nets []*net.IPNet
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "/") {
			part += "/32"
		}
		if _, ipnet, err := net.ParseCIDR(part); err == nil {
			nets = append(nets, ipnet)
		}
	}
	return nets
}

func parseASNSet(raw string) map[string]bool {
	set := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(strings.ToUpper(part))
		if part != "" {
			set[part] = true
		}
	}
	return set
}

// Load reads policy from the environment, matching the default values
// observed in the original risk engine.
func Load() *Store {
	cache, _ := lru.New[string, bool](1024)
	return &Store{
		HighThreshold:      getEnvInt("HIGH_THRESHOLD", 60),
		MediumThreshold:    getEnvInt("MEDIUM_THRESHOLD", 40),
		denyNets:           parseCIDRList(getEnv("DENYLIST_IP_PREFIXES", "")),
		allowNets:          parseCIDRList(getEnv("ALLOWLIST_IP_PREFIXES", "")),
		carrierASNs:        parseASNSet(getEnv("CARRIER_ASN_LIST", "AS55836,AS45609,AS55410,AS55824")),
		PromotionThreshold: getEnvInt("KNOWN_NETWORK_PROMOTION_THRESHOLD", 3),
		DecayDays:          getEnvInt("KNOWN_NETWORK_DECAY_DAYS", 90),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret-change-me"),
		CookieDomain:       getEnv("COOKIE_DOMAIN", ""),
		CookieSecure:       getEnv("COOKIE_SECURE", "false") == "true",
		prefixCache:        cache,
	}
}

// IsDenied reports whether ip falls within a configured denylist prefix.
func (s *Store) IsDenied(ip string) bool {
	return s.matchesCached("deny:"+ip, ip, s.denyNets)
}

// IsAllowed reports whether the allowlist is empty (meaning "no
// restriction") or ip falls within one of its prefixes.
func (s *Store) IsAllowed(ip string) bool {
	if len(s.allowNets) == 0 {
		return true
	}
	return s.matchesCached("allow:"+ip, ip, s.allowNets)
}

func (s *Store) matchesCached(cacheKey, ip string, nets []*net.IPNet) bool {
	if s.prefixCache != nil {
		if v, ok := s.prefixCache.Get(cacheKey); ok {
			return v
		}
	}
	parsed := net.ParseIP(ip)
	match := false
	if parsed != nil {
		for _, n := range nets {
			if n.Contains(parsed) {
				match = true
				break
			}
		}
	}
	if s.prefixCache != nil {
		s.prefixCache.Add(cacheKey, match)
	}
	return match
}

// IsCarrierASN reports whether asn (e.g. "AS55836") is in the carrier set.
func (s *Store) IsCarrierASN(asn string) bool {
	return s.carrierASNs[strings.ToUpper(asn)]
}

// IsPrivate reports whether ip is a private/loopback/link-local address,
// which should never be tracked as a known network.
func IsPrivate(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsLinkLocalUnicast()
}

// Prefix derives the tracking prefix for an IP: /24 for IPv4, /64 for IPv6.
func Prefix(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		mask := net.CIDRMask(24, 32)
		return (&net.IPNet{IP: v4.Mask(mask), Mask: mask}).String()
	}
	mask := net.CIDRMask(64, 128)
	return (&net.IPNet{IP: parsed.Mask(mask), Mask: mask}).String()
}
