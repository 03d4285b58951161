package models

import (
	"time"

	id "civicportal/pkg/domain"
)

// Record is one row of a tenant-scoped table. Fields that a kind does not
// use stay empty.
type Record struct {
	ID        id.RecordID `json:"id"`
	Kind      Kind        `json:"kind"`
	TenantID  id.TenantID `json:"-"`
	Title     string      `json:"title"`
	Body      string      `json:"body,omitempty"`
	Category  string      `json:"category,omitempty"`
	Status    Status      `json:"status"`
	Location  *Location   `json:"location,omitempty"`
	Address   string      `json:"address,omitempty"`
	Channel   string      `json:"channel,omitempty"`
	CreatedBy id.UserID   `json:"-"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Location is a WGS84 point.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid rejects coordinates outside WGS84 bounds.
func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Clone returns a deep copy so stores never share memory with callers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Location != nil {
		loc := *r.Location
		cp.Location = &loc
	}
	return &cp
}
