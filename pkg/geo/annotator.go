// Package geo resolves IP addresses to location attributes using a MaxMind
// GeoLite2 city database. The resolved country and city are attached to
// login attempt records; lookup failures never block the attempt from being
// recorded.
package geo

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/vaxguard/device-trust/pkg/attempt"
)

// MaxMindAnnotator resolves locations from a local .mmdb city database
type MaxMindAnnotator struct {
	reader *geoip2.Reader
}

// NewMaxMindAnnotator opens the city database at the given path
func NewMaxMindAnnotator(cityDBPath string) (*MaxMindAnnotator, error) {
	reader, err := geoip2.Open(cityDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open city database: %w", err)
	}
	return &MaxMindAnnotator{reader: reader}, nil
}

// Annotate resolves the country ISO code and city name for an IP address
func (a *MaxMindAnnotator) Annotate(ctx context.Context, ipAddress string) (attempt.Annotation, error) {
	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return attempt.Annotation{}, fmt.Errorf("invalid ip address: %s", ipAddress)
	}

	record, err := a.reader.City(ip)
	if err != nil {
		return attempt.Annotation{}, err
	}

	return attempt.Annotation{
		Country: record.Country.IsoCode,
		City:    record.City.Names["en"],
	}, nil
}

// Close releases the database handle
func (a *MaxMindAnnotator) Close() error {
	return a.reader.Close()
}

// NoopAnnotator returns empty annotations; used when no location database is
// configured.
type NoopAnnotator struct{}

// Annotate always returns an empty annotation
func (NoopAnnotator) Annotate(ctx context.Context, ipAddress string) (attempt.Annotation, error) {
	return attempt.Annotation{}, nil
}
