// Package geoip resolves ASN and city/region/country data for an IP
// address using local MaxMind mmdb databases, caching results in Redis the
// same way the original telemetry service cached lookups.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/redis/go-redis/v9"
)

// Info is the enrichment this package produces for one IP.
type Info struct {
	ASN     string `json:"asn"`
	ASNOrg  string `json:"asn_org"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Found   bool `json:"found"`
}

// Resolver looks up IP enrichment, backed by lazily-opened mmdb readers and
// an optional Redis cache.
type Resolver struct {
	asnReader  *geoip2.Reader
	cityReader *geoip2.Reader
	cache      *redis.Client
	cacheTTL   time.Duration
}

// NewResolver opens the ASN and City mmdb files named by GEOIP2_ASN_DB and
// GEOIP2_CITY_DB. Either may be absent; lookups leave the missing
// dimension's fields empty, and Found is false only when neither database
// produced a record.
func NewResolver(cache *redis.Client) (*Resolver, error) {
	r := &Resolver{cache: cache, cacheTTL: cacheTTLFromEnv()}
	if path := os.Getenv("GEOIP2_ASN_DB"); path != "" {
		reader, err := geoip2.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open ASN db: %w", err)
		}
		r.asnReader = reader
	}
	if path := os.Getenv("GEOIP2_CITY_DB"); path != "" {
		reader, err := geoip2.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open City db: %w", err)
		}
		r.cityReader = reader
	}
	return r, nil
}

func cacheTTLFromEnv() time.Duration {
	if v := os.Getenv("GEOIP_CACHE_TTL_SEC"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			return d
		}
	}
	return 24 * time.Hour
}

// Lookup resolves ASN + city/region/country for ip, checking the Redis
// cache first when available.
func (r *Resolver) Lookup(ctx context.Context, ip string) Info {
	cacheKey := "geoip:" + ip
	if r.cache != nil {
		if raw, err := r.cache.Get(ctx, cacheKey).Result(); err == nil {
			var cached Info
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached
			}
		}
	}

	info := r.lookupFresh(ip)

	if r.cache != nil {
		if raw, err := json.Marshal(info); err == nil {
			r.cache.Set(ctx, cacheKey, raw, r.cacheTTL)
		}
	}
	return info
}

func (r *Resolver) lookupFresh(ip string) Info {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Info{}
	}
	info := Info{}
	if r.asnReader != nil {
		if rec, err := r.asnReader.ASN(parsed); err == nil {
			info.ASN = fmt.Sprintf("AS%d", rec.AutonomousSystemNumber)
			info.ASNOrg = rec.AutonomousSystemOrganization
			info.Found = true
		}
	}
	if r.cityReader != nil {
		if rec, err := r.cityReader.City(parsed); err == nil {
			info.City = rec.City.Names["en"]
			info.Country = rec.Country.IsoCode
			info.Lat = rec.Location.Latitude
			info.Lon = rec.Location.Longitude
			if len(rec.Subdivisions) > 0 {
				info.Region = rec.Subdivisions[0].IsoCode
			}
			info.Found = true
		}
	}
	return info
}

// Close releases the underlying mmdb file handles.
func (r *Resolver) Close() error {
	var err error
	if r.asnReader != nil {
		if e := r.asnReader.Close(); e != nil {
			err = e
		}
	}
	if r.cityReader != nil && r.cityReader != r.asnReader {
		if e := r.cityReader.Close(); e != nil {
			err = e
		}
	}
	return err
}
