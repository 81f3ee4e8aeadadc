// Package model holds the dispatch domain types and their row bindings.
// Rows are matched to fields by header name at runtime so column order in
// the underlying table never matters.
package model

import "regexp"

// RequestStatus is the fulfillment status of a transportation request.
type RequestStatus string

const (
	RequestNew        RequestStatus = "New"
	RequestPending    RequestStatus = "Pending"
	RequestAssigned   RequestStatus = "Assigned"
	RequestUnassigned RequestStatus = "Unassigned"
	RequestInProgress RequestStatus = "In Progress"
	RequestCompleted  RequestStatus = "Completed"
	RequestCancelled  RequestStatus = "Cancelled"
)

func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestNew, RequestPending, RequestAssigned, RequestUnassigned,
		RequestInProgress, RequestCompleted, RequestCancelled:
		return true
	}
	return false
}

// RiderStatus is a rider's roster status. Only Active riders seed the
// rotation order.
type RiderStatus string

const (
	RiderActive    RiderStatus = "Active"
	RiderInactive  RiderStatus = "Inactive"
	RiderVacation  RiderStatus = "Vacation"
	RiderTraining  RiderStatus = "Training"
	RiderSuspended RiderStatus = "Suspended"
)

func (s RiderStatus) IsValid() bool {
	switch s {
	case RiderActive, RiderInactive, RiderVacation, RiderTraining, RiderSuspended:
		return true
	}
	return false
}

// AssignmentStatus is the lifecycle status of a single assignment.
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "Assigned"
	AssignmentConfirmed  AssignmentStatus = "Confirmed"
	AssignmentEnRoute    AssignmentStatus = "En Route"
	AssignmentInProgress AssignmentStatus = "In Progress"
	AssignmentCompleted  AssignmentStatus = "Completed"
	AssignmentCancelled  AssignmentStatus = "Cancelled"
	AssignmentNoShow     AssignmentStatus = "No Show"
)

func (s AssignmentStatus) IsValid() bool {
	switch s {
	case AssignmentAssigned, AssignmentConfirmed, AssignmentEnRoute,
		AssignmentInProgress, AssignmentCompleted, AssignmentCancelled,
		AssignmentNoShow:
		return true
	}
	return false
}

// IsTerminal reports whether this status ends the assignment's active
// lifecycle. Terminal assignments are excluded from conflict checks.
func (s AssignmentStatus) IsTerminal() bool {
	return s == AssignmentCompleted || s == AssignmentCancelled || s == AssignmentNoShow
}

// requestIDPattern matches request ids like "B-02-24": month letter,
// two-digit sequence, two-digit year.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z]-\d{2}-\d{2}$`)

// ValidRequestID reports whether id has the expected format.
func ValidRequestID(id string) bool {
	return requestIDPattern.MatchString(id)
}

// Request is a transportation job needing riders. Created externally;
// Status and AssignedRiders are the only fields the core mutates.
// RowIndex is the 1-based data row the snapshot was read from.
type Request struct {
	ID                string
	EventDate         string
	StartTime         string
	EndTime           string
	StartLocation     string
	EndLocation       string
	SecondaryLocation string
	RidersNeeded      int
	AssignedRiders    string // denormalized display text, never authoritative
	Status            RequestStatus
	LastUpdated       string
	RowIndex          int
}

// Rider is a roster entry. Read-only to the core; Name is the matching key
// (case-insensitive trim).
type Rider struct {
	ID       string
	Name     string
	Phone    string
	Email    string
	Status   RiderStatus
	PartTime bool
	RowIndex int
}

// Assignment is one rider's commitment to one request. Schedule and
// location fields are copied from the request at creation time.
type Assignment struct {
	ID                string
	RequestID         string
	RiderName         string
	EventDate         string
	StartTime         string
	EndTime           string
	StartLocation     string
	EndLocation       string
	SecondaryLocation string
	Status            AssignmentStatus
	CreatedDate       string
	NotifiedAt        string // opaque transport timestamps
	ConfirmedAt       string
	RowIndex          int
}

// AvailabilityEntry is one row of a rider's opt-out calendar. Absence of a
// matching entry means available.
type AvailabilityEntry struct {
	RiderID   string
	Email     string
	Date      string
	StartTime string // optional
	EndTime   string // optional
	Status    string // "", "Available", or anything else meaning unavailable
	RowIndex  int
}
