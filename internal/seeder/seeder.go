// Package seeder fills the in-memory stores with demo cities and records
// for local mode.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"civicportal/internal/guard"
	recordmodels "civicportal/internal/records/models"
	tenantmodels "civicportal/internal/tenant/models"
	id "civicportal/pkg/domain"
	"civicportal/pkg/requestcontext"
)

type TenantStore interface {
	Create(ctx context.Context, t *tenantmodels.Tenant) error
}

type RecordStore interface {
	Create(ctx context.Context, scope guard.Scope, r *recordmodels.Record) error
}

type Seeder struct {
	tenants TenantStore
	records RecordStore
	logger  *slog.Logger
}

func New(tenants TenantStore, records RecordStore, logger *slog.Logger) *Seeder {
	return &Seeder{tenants: tenants, records: records, logger: logger}
}

// SeedAll creates the fallback tenant and two demo cities with sample
// records. It returns the demo cities.
func (s *Seeder) SeedAll(ctx context.Context, fallback *tenantmodels.Tenant) ([]*tenantmodels.Tenant, error) {
	s.logger.Info("seeding demo data")

	if err := s.tenants.Create(ctx, fallback); err != nil {
		return nil, fmt.Errorf("failed to seed fallback tenant: %w", err)
	}

	cities := []*tenantmodels.Tenant{
		{
			ID:        id.TenantID(uuid.New()),
			Subdomain: "springfield",
			Name:      "City of Springfield",
			Branding:  tenantmodels.Branding{PrimaryColor: "#0b5394", ContactEmail: "311@springfield.example.gov", Locale: "en"},
		},
		{
			ID:        id.TenantID(uuid.New()),
			Subdomain: "riverton",
			Name:      "Ville de Riverton",
			Branding:  tenantmodels.Branding{PrimaryColor: "#38761d", ContactEmail: "contact@riverton.example.gov", Locale: "fr"},
		},
	}
	for _, city := range cities {
		now := requestcontext.Now(ctx)
		city.CreatedAt, city.UpdatedAt = now, now
		if err := s.tenants.Create(ctx, city); err != nil {
			return nil, fmt.Errorf("failed to seed tenant %s: %w", city.Subdomain, err)
		}
		if err := s.seedRecords(ctx, city); err != nil {
			return nil, err
		}
	}

	s.logger.Info("demo data seeded", "cities", len(cities))
	return cities, nil
}

func (s *Seeder) seedRecords(ctx context.Context, city *tenantmodels.Tenant) error {
	scope := guard.ProvisioningScope(city.ID)

	base := requestcontext.Now(ctx).Add(-72 * time.Hour)
	samples := []*recordmodels.Record{
		{Kind: recordmodels.KindServiceRequests, Title: "Pothole on Main Street", Category: "roads", Status: "submitted",
			Location: &recordmodels.Location{Lat: 44.0521, Lng: -123.0868}, Channel: "web"},
		{Kind: recordmodels.KindServiceRequests, Title: "Streetlight out on 5th Avenue", Category: "lighting", Status: "acknowledged",
			Location: &recordmodels.Location{Lat: 44.0462, Lng: -123.0220}, Channel: "mobile"},
		{Kind: recordmodels.KindServiceRequests, Title: "Missed recycling pickup", Category: "waste", Status: "closed", Channel: "api"},
		{Kind: recordmodels.KindFacilities, Title: "Central Library", Category: "library", Status: "open",
			Location: &recordmodels.Location{Lat: 44.0497, Lng: -123.0920}, Address: "100 W 10th Ave"},
		{Kind: recordmodels.KindFacilities, Title: "Riverside Pool", Category: "recreation", Status: "temporarily_closed"},
		{Kind: recordmodels.KindHandbookArticles, Title: "How to report an issue", Body: "Use the report form or call 311.", Status: "published"},
		{Kind: recordmodels.KindHandbookArticles, Title: "Winter parking rules", Status: "draft"},
		{Kind: recordmodels.KindEmergencyAlerts, Title: "Boil water advisory", Body: "North district until further notice.", Status: "active"},
	}
	for i, r := range samples {
		at := base.Add(time.Duration(i) * time.Hour)
		r.CreatedAt, r.UpdatedAt = at, at
		if err := s.records.Create(ctx, scope, r); err != nil {
			return fmt.Errorf("failed to seed %s for %s: %w", r.Kind, city.Subdomain, err)
		}
	}
	return nil
}
