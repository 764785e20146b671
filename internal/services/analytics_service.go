// Package services – AnalyticsService
//
// AnalyticsService produces scan rollups for a set of short links. The
// requested ids are first narrowed to those owned by the caller; every query
// after that is read-only and scoped to the authorized subset.
package services

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-qrlink-backend/internal/repo"
)

// AnalyticsRepo defines the aggregate queries used by AnalyticsService.
type AnalyticsRepo interface {
	OwnedShortLinkIDs(ctx context.Context, db *gorm.DB, ownerID string, ids []string) ([]string, error)
	CountScans(ctx context.Context, db *gorm.DB, ids []string) (int64, error)
	UserAgentCounts(ctx context.Context, db *gorm.DB, ids []string) ([]repo.UserAgentCount, error)
	CountryCounts(ctx context.Context, db *gorm.DB, ids []string, limit int) ([]repo.LocationCount, error)
	RegionCounts(ctx context.Context, db *gorm.DB, ids []string, limit int) ([]repo.LocationCount, error)
	CityCounts(ctx context.Context, db *gorm.DB, ids []string, limit int) ([]repo.LocationCount, error)
}

// LocationLimit caps each location rollup.
const LocationLimit = 50

// DeviceBreakdown counts scans per device class.
type DeviceBreakdown struct {
	Android int64 `json:"android"`
	IOS     int64 `json:"ios"`
	Other   int64 `json:"other"`
}

// CountryStat is one row of the per-country rollup.
type CountryStat struct {
	Country string `json:"country"`
	Scans   int64  `json:"scans"`
}

// RegionStat is one row of the per-region rollup.
type RegionStat struct {
	Region  string `json:"region"`
	Country string `json:"country"`
	Scans   int64  `json:"scans"`
}

// CityStat is one row of the per-city rollup.
type CityStat struct {
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Scans   int64  `json:"scans"`
}

// MapPoint is a city rollup row with optional country-level coordinates
// ([longitude, latitude]).
type MapPoint struct {
	City        string      `json:"city"`
	Region      string      `json:"region"`
	Country     string      `json:"country"`
	Scans       int64       `json:"scans"`
	Coordinates *[2]float64 `json:"coordinates,omitempty"`
}

// LocationBreakdown groups the three location rollups.
type LocationBreakdown struct {
	Countries []CountryStat `json:"countries"`
	Regions   []RegionStat  `json:"regions"`
	Cities    []CityStat    `json:"cities"`
}

// AnalyticsReport is the response of Aggregate.
type AnalyticsReport struct {
	TotalScans        int64             `json:"totalScans"`
	DeviceBreakdown   DeviceBreakdown   `json:"deviceBreakdown"`
	LocationBreakdown LocationBreakdown `json:"locationBreakdown"`
	MapData           []MapPoint        `json:"mapData"`
}

// EmptyReport returns a zero-valued report with non-nil slices.
func EmptyReport() *AnalyticsReport {
	return &AnalyticsReport{
		LocationBreakdown: LocationBreakdown{
			Countries: []CountryStat{},
			Regions:   []RegionStat{},
			Cities:    []CityStat{},
		},
		MapData: []MapPoint{},
	}
}

// AnalyticsService aggregates scan events.
type AnalyticsService struct {
	DB   *gorm.DB
	Repo AnalyticsRepo
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(db *gorm.DB, r AnalyticsRepo) *AnalyticsService {
	return &AnalyticsService{DB: db, Repo: r}
}

// Aggregate builds the report for ids restricted to those owned by ownerID.
// Blank and duplicate ids are ignored; if none remain ErrNoShortLinkIDs is
// returned. Requesting only foreign or unknown ids yields an empty report.
func (s *AnalyticsService) Aggregate(ctx context.Context, ownerID string, ids []string) (*AnalyticsReport, error) {
	ids = lo.Uniq(lo.Compact(lo.Map(ids, func(id string, _ int) string { return strings.TrimSpace(id) })))
	if len(ids) == 0 {
		return nil, ErrNoShortLinkIDs
	}

	ctx, span := otel.Tracer("services/AnalyticsService").Start(ctx, "Aggregate",
		trace.WithAttributes(
			attribute.String("owner.id", ownerID),
			attribute.Int("links.requested", len(ids)),
		),
	)
	defer span.End()

	owned, err := s.Repo.OwnedShortLinkIDs(ctx, s.DB, ownerID, ids)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("links.authorized", len(owned)))
	if len(owned) == 0 {
		return EmptyReport(), nil
	}

	report := EmptyReport()

	if report.TotalScans, err = s.Repo.CountScans(ctx, s.DB, owned); err != nil {
		return nil, err
	}

	agents, err := s.Repo.UserAgentCounts(ctx, s.DB, owned)
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		switch ClassifyDevice(a.UserAgent) {
		case DeviceAndroid:
			report.DeviceBreakdown.Android += a.Scans
		case DeviceIOS:
			report.DeviceBreakdown.IOS += a.Scans
		default:
			report.DeviceBreakdown.Other += a.Scans
		}
	}

	countries, err := s.Repo.CountryCounts(ctx, s.DB, owned, LocationLimit)
	if err != nil {
		return nil, err
	}
	regions, err := s.Repo.RegionCounts(ctx, s.DB, owned, LocationLimit)
	if err != nil {
		return nil, err
	}
	cities, err := s.Repo.CityCounts(ctx, s.DB, owned, LocationLimit)
	if err != nil {
		return nil, err
	}

	report.LocationBreakdown.Countries = lo.Map(countries, func(c repo.LocationCount, _ int) CountryStat {
		return CountryStat{Country: labelOrUnknown(c.Country), Scans: c.Scans}
	})
	report.LocationBreakdown.Regions = lo.Map(regions, func(c repo.LocationCount, _ int) RegionStat {
		return RegionStat{Region: labelOrUnknown(c.Region), Country: labelOrUnknown(c.Country), Scans: c.Scans}
	})
	report.LocationBreakdown.Cities = lo.Map(cities, func(c repo.LocationCount, _ int) CityStat {
		return CityStat{City: labelOrUnknown(c.City), Region: labelOrUnknown(c.Region), Country: labelOrUnknown(c.Country), Scans: c.Scans}
	})
	report.MapData = lo.Map(report.LocationBreakdown.Cities, func(c CityStat, _ int) MapPoint {
		p := MapPoint{City: c.City, Region: c.Region, Country: c.Country, Scans: c.Scans}
		if ll, ok := CountryCoordinates(c.Country); ok {
			p.Coordinates = &ll
		}
		return p
	})

	return report, nil
}

func labelOrUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return repo.UnknownLocation
	}
	return s
}
