package model

import (
	"strconv"
	"strings"

	"github.com/saferides/escort-dispatch/pkg/core/errs"
	"github.com/saferides/escort-dispatch/pkg/tablestore"
)

// Canonical header names per table. Matching against snapshots is
// case-insensitive; these spellings are used when building rows to append.
const (
	HdrRequestID         = "Request ID"
	HdrEventDate         = "Event Date"
	HdrStartTime         = "Start Time"
	HdrEndTime           = "End Time"
	HdrStartLocation     = "Start Location"
	HdrEndLocation       = "End Location"
	HdrSecondaryLocation = "Secondary Location"
	HdrRidersNeeded      = "Riders Needed"
	HdrAssignedRiders    = "Assigned Riders"
	HdrStatus            = "Status"
	HdrLastUpdated       = "Last Updated"

	HdrRiderID  = "Rider ID"
	HdrName     = "Name"
	HdrPhone    = "Phone"
	HdrEmail    = "Email"
	HdrPartTime = "Part Time"

	HdrAssignmentID = "Assignment ID"
	HdrRiderName    = "Rider Name"
	HdrCreatedDate  = "Created Date"
	HdrNotifiedAt   = "Notified At"
	HdrConfirmedAt  = "Confirmed At"

	HdrDate = "Date"
)

var requestHeaders = []string{
	HdrRequestID, HdrEventDate, HdrStartTime, HdrEndTime,
	HdrStartLocation, HdrEndLocation, HdrRidersNeeded,
	HdrAssignedRiders, HdrStatus,
}

var riderHeaders = []string{HdrRiderID, HdrName, HdrStatus}

var assignmentHeaders = []string{
	HdrAssignmentID, HdrRequestID, HdrRiderName, HdrEventDate,
	HdrStartTime, HdrStatus,
}

var availabilityHeaders = []string{HdrRiderID, HdrDate, HdrStatus}

// requireHeaders verifies that every required header resolves in the
// snapshot's column index.
func requireHeaders(t *tablestore.Table, required []string) error {
	for _, h := range required {
		if t.Col(h) < 0 {
			return errs.NewValidation(t.Name, "missing required header: "+h)
		}
	}
	return nil
}

// ParseRequests converts a requests snapshot into Request structs. Rows
// with an empty id cell are skipped.
func ParseRequests(t *tablestore.Table) ([]Request, error) {
	if err := requireHeaders(t, requestHeaders); err != nil {
		return nil, err
	}
	out := make([]Request, 0, len(t.Rows))
	for i := 1; i <= len(t.Rows); i++ {
		if strings.TrimSpace(t.Cell(i, HdrRequestID)) == "" {
			continue
		}
		out = append(out, requestFromRow(t, i))
	}
	return out, nil
}

// ParseRequestRow converts a single data row of a requests snapshot,
// validating the required headers first. Used for indexed point lookups
// so one row never costs a full-table parse.
func ParseRequestRow(t *tablestore.Table, rowIndex int) (*Request, error) {
	if err := requireHeaders(t, requestHeaders); err != nil {
		return nil, err
	}
	if rowIndex < 1 || rowIndex > len(t.Rows) {
		return nil, errs.NewValidation(t.Name, "row index out of range")
	}
	r := requestFromRow(t, rowIndex)
	return &r, nil
}

func requestFromRow(t *tablestore.Table, i int) Request {
	needed, _ := strconv.Atoi(strings.TrimSpace(t.Cell(i, HdrRidersNeeded)))
	return Request{
		ID:                strings.TrimSpace(t.Cell(i, HdrRequestID)),
		EventDate:         strings.TrimSpace(t.Cell(i, HdrEventDate)),
		StartTime:         strings.TrimSpace(t.Cell(i, HdrStartTime)),
		EndTime:           strings.TrimSpace(t.Cell(i, HdrEndTime)),
		StartLocation:     t.Cell(i, HdrStartLocation),
		EndLocation:       t.Cell(i, HdrEndLocation),
		SecondaryLocation: t.Cell(i, HdrSecondaryLocation),
		RidersNeeded:      needed,
		AssignedRiders:    t.Cell(i, HdrAssignedRiders),
		Status:            RequestStatus(strings.TrimSpace(t.Cell(i, HdrStatus))),
		LastUpdated:       t.Cell(i, HdrLastUpdated),
		RowIndex:          i,
	}
}

// ParseRiders converts a riders snapshot into Rider structs.
func ParseRiders(t *tablestore.Table) ([]Rider, error) {
	if err := requireHeaders(t, riderHeaders); err != nil {
		return nil, err
	}
	out := make([]Rider, 0, len(t.Rows))
	for i := 1; i <= len(t.Rows); i++ {
		name := strings.TrimSpace(t.Cell(i, HdrName))
		if name == "" {
			continue
		}
		out = append(out, Rider{
			ID:       strings.TrimSpace(t.Cell(i, HdrRiderID)),
			Name:     name,
			Phone:    t.Cell(i, HdrPhone),
			Email:    strings.TrimSpace(t.Cell(i, HdrEmail)),
			Status:   RiderStatus(strings.TrimSpace(t.Cell(i, HdrStatus))),
			PartTime: parseBool(t.Cell(i, HdrPartTime)),
			RowIndex: i,
		})
	}
	return out, nil
}

// ParseAssignments converts an assignments snapshot into Assignment structs.
func ParseAssignments(t *tablestore.Table) ([]Assignment, error) {
	if err := requireHeaders(t, assignmentHeaders); err != nil {
		return nil, err
	}
	out := make([]Assignment, 0, len(t.Rows))
	for i := 1; i <= len(t.Rows); i++ {
		id := strings.TrimSpace(t.Cell(i, HdrAssignmentID))
		if id == "" {
			continue
		}
		out = append(out, Assignment{
			ID:                id,
			RequestID:         strings.TrimSpace(t.Cell(i, HdrRequestID)),
			RiderName:         strings.TrimSpace(t.Cell(i, HdrRiderName)),
			EventDate:         strings.TrimSpace(t.Cell(i, HdrEventDate)),
			StartTime:         strings.TrimSpace(t.Cell(i, HdrStartTime)),
			EndTime:           strings.TrimSpace(t.Cell(i, HdrEndTime)),
			StartLocation:     t.Cell(i, HdrStartLocation),
			EndLocation:       t.Cell(i, HdrEndLocation),
			SecondaryLocation: t.Cell(i, HdrSecondaryLocation),
			Status:            AssignmentStatus(strings.TrimSpace(t.Cell(i, HdrStatus))),
			CreatedDate:       t.Cell(i, HdrCreatedDate),
			NotifiedAt:        t.Cell(i, HdrNotifiedAt),
			ConfirmedAt:       t.Cell(i, HdrConfirmedAt),
			RowIndex:          i,
		})
	}
	return out, nil
}

// ParseAvailability converts an availability snapshot into entries.
func ParseAvailability(t *tablestore.Table) ([]AvailabilityEntry, error) {
	if err := requireHeaders(t, availabilityHeaders); err != nil {
		return nil, err
	}
	out := make([]AvailabilityEntry, 0, len(t.Rows))
	for i := 1; i <= len(t.Rows); i++ {
		rid := strings.TrimSpace(t.Cell(i, HdrRiderID))
		email := strings.TrimSpace(t.Cell(i, HdrEmail))
		if rid == "" && email == "" {
			continue
		}
		out = append(out, AvailabilityEntry{
			RiderID:   rid,
			Email:     email,
			Date:      strings.TrimSpace(t.Cell(i, HdrDate)),
			StartTime: strings.TrimSpace(t.Cell(i, HdrStartTime)),
			EndTime:   strings.TrimSpace(t.Cell(i, HdrEndTime)),
			Status:    strings.TrimSpace(t.Cell(i, HdrStatus)),
			RowIndex:  i,
		})
	}
	return out, nil
}

// AssignmentRow lays out an assignment as a row matching the snapshot's
// column order, so appends stay correct however the table is arranged.
func AssignmentRow(t *tablestore.Table, a Assignment) []string {
	row := make([]string, len(t.Headers))
	put := func(header, value string) {
		if col := t.Col(header); col >= 0 {
			row[col] = value
		}
	}
	put(HdrAssignmentID, a.ID)
	put(HdrRequestID, a.RequestID)
	put(HdrRiderName, a.RiderName)
	put(HdrEventDate, a.EventDate)
	put(HdrStartTime, a.StartTime)
	put(HdrEndTime, a.EndTime)
	put(HdrStartLocation, a.StartLocation)
	put(HdrEndLocation, a.EndLocation)
	put(HdrSecondaryLocation, a.SecondaryLocation)
	put(HdrStatus, string(a.Status))
	put(HdrCreatedDate, a.CreatedDate)
	put(HdrNotifiedAt, a.NotifiedAt)
	put(HdrConfirmedAt, a.ConfirmedAt)
	return row
}

// NormalizeName is the rider-name matching key: trimmed, lower-cased.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}
