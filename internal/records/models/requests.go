package models

import (
	"errors"
	"strings"

	"civicportal/pkg/validation"
)

// ReportIssueRequest is a citizen's new service request.
type ReportIssueRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	Category    string    `json:"category" validate:"required,max=64"`
	Location    *Location `json:"location,omitempty"`
	Address     string    `json:"address,omitempty" validate:"max=300"`
}

func (r *ReportIssueRequest) Normalize() {
	trimAll(&r.Title, &r.Description, &r.Address)
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
}

func (r *ReportIssueRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	return validateLocation(r.Location)
}

// CreateRecordRequest is an admin-authored facility, article or alert.
type CreateRecordRequest struct {
	Title    string    `json:"title" validate:"required,max=200"`
	Body     string    `json:"body" validate:"max=5000"`
	Category string    `json:"category,omitempty" validate:"max=64"`
	Status   Status    `json:"status,omitempty"`
	Location *Location `json:"location,omitempty"`
	Address  string    `json:"address,omitempty" validate:"max=300"`
}

func (r *CreateRecordRequest) Normalize() {
	trimAll(&r.Title, &r.Body, &r.Address)
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
	r.Status = normalizeStatus(r.Status)
}

func (r *CreateRecordRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	return validateLocation(r.Location)
}

// StatusChangeRequest is the body of an admin status change.
type StatusChangeRequest struct {
	Status Status `json:"status" validate:"required"`
}

func (r *StatusChangeRequest) Normalize() {
	r.Status = normalizeStatus(r.Status)
}

func (r *StatusChangeRequest) Validate() error {
	return validation.Validate(r)
}

func validateLocation(loc *Location) error {
	if loc != nil && !loc.Valid() {
		return errors.New("location is out of range")
	}
	return nil
}

func normalizeStatus(s Status) Status {
	return Status(strings.ToLower(strings.TrimSpace(string(s))))
}

func trimAll(ss ...*string) {
	for _, s := range ss {
		*s = strings.TrimSpace(*s)
	}
}
