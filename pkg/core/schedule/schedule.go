// Package schedule answers the advisory questions asked before (or instead
// of) assigning a rider: does another assignment start too close, and has
// the rider opted out of the window. Availability is opt-out: absence of a
// calendar entry means available. Unparseable input never fails a check.
package schedule

import (
	"context"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/saferides/escort-dispatch/internal/config"
	"github.com/saferides/escort-dispatch/pkg/core/model"
)

// conflictWindow is the inclusive spacing two assignment start times must
// keep on the same calendar date.
const conflictWindow = 60 * time.Minute

// Store is the slice of the repository the checker reads.
type Store interface {
	AssignmentsForRider(ctx context.Context, riderName string) ([]model.Assignment, error)
	AvailabilityEntries(ctx context.Context) ([]model.AvailabilityEntry, error)
	GetRiderByName(ctx context.Context, name string) (*model.Rider, error)
}

type blackout struct {
	rule      *rrule.RRule
	startTime string
	endTime   string
	reason    string
}

// Checker evaluates conflicts and availability windows.
type Checker struct {
	store     Store
	logger    *zap.Logger
	blackouts []blackout
}

// NewChecker builds a checker. Blackout rules with invalid rrules are
// skipped with a warning; config validation normally rejects them earlier.
func NewChecker(store Store, logger *zap.Logger, rules []config.BlackoutRule) *Checker {
	c := &Checker{store: store, logger: logger}
	for i, r := range rules {
		rule, err := rrule.StrToRRule(r.RRule)
		if err != nil {
			logger.Warn("Skipping invalid blackout rule",
				zap.Int("index", i),
				zap.String("rrule", r.RRule),
				zap.Error(err))
			continue
		}
		c.blackouts = append(c.blackouts, blackout{
			rule:      rule,
			startTime: r.StartTime,
			endTime:   r.EndTime,
			reason:    r.Reason,
		})
	}
	return c
}

// HasTimeConflict reports whether the rider already has a non-terminal
// assignment on the same calendar date starting within 60 minutes
// (inclusive) of the candidate start. Unparseable input reports no
// conflict; this check is advisory.
func (c *Checker) HasTimeConflict(ctx context.Context, riderName, eventDate, startTime string) bool {
	candidateDate, ok := parseDate(eventDate)
	if !ok {
		return false
	}
	candidateStart, ok := parseTimeOn(candidateDate, startTime)
	if !ok {
		return false
	}

	assignments, err := c.store.AssignmentsForRider(ctx, riderName)
	if err != nil {
		c.logger.Warn("Conflict check could not read assignments",
			zap.String("rider", riderName), zap.Error(err))
		return false
	}

	for _, a := range assignments {
		if a.Status.IsTerminal() {
			continue
		}
		otherDate, ok := parseDate(a.EventDate)
		if !ok || !sameDay(otherDate, candidateDate) {
			continue
		}
		// Normalize both starts onto the candidate's date before differencing.
		otherStart, ok := parseTimeOn(candidateDate, a.StartTime)
		if !ok {
			continue
		}
		diff := candidateStart.Sub(otherStart)
		if diff < 0 {
			diff = -diff
		}
		if diff <= conflictWindow {
			return true
		}
	}
	return false
}

// IsAvailable reports whether the rider (matched by id or email) is
// available at the given instant. The first calendar entry whose window
// covers the instant decides; no matching entry means available.
func (c *Checker) IsAvailable(ctx context.Context, riderIdent string, at time.Time) bool {
	entries, err := c.store.AvailabilityEntries(ctx)
	if err != nil {
		c.logger.Warn("Availability check could not read calendar",
			zap.String("rider", riderIdent), zap.Error(err))
		return true
	}

	ident := strings.ToLower(strings.TrimSpace(riderIdent))
	for _, e := range entries {
		if strings.ToLower(e.RiderID) != ident && strings.ToLower(e.Email) != ident {
			continue
		}
		entryDate, ok := parseDate(e.Date)
		if !ok || !sameDay(entryDate, at) {
			continue
		}
		if !windowCovers(entryDate, e.StartTime, e.EndTime, at) {
			continue
		}
		s := strings.ToLower(e.Status)
		return s == "" || s == "available"
	}
	return true
}

// IsRiderAvailable is the single public conflict+availability gate: false
// on a time conflict or a configured blackout, otherwise the rider's
// calendar answer for the composed datetime.
func (c *Checker) IsRiderAvailable(ctx context.Context, riderName, dateStr, startTimeStr string) bool {
	if c.HasTimeConflict(ctx, riderName, dateStr, startTimeStr) {
		return false
	}

	date, ok := parseDate(dateStr)
	if !ok {
		return true
	}
	at, ok := parseTimeOn(date, startTimeStr)
	if !ok {
		at = date
	}

	ident := riderName
	if rider, err := c.store.GetRiderByName(ctx, riderName); err == nil {
		switch {
		case rider.ID != "":
			ident = rider.ID
		case rider.Email != "":
			ident = rider.Email
		}
	}

	if !c.IsAvailable(ctx, ident, at) {
		return false
	}

	if b, hit := c.blackedOut(date, at); hit {
		c.logger.Debug("Date falls in blackout window",
			zap.String("rider", riderName),
			zap.String("date", dateStr),
			zap.String("reason", b.reason))
		return false
	}
	return true
}

// blackedOut reports whether any configured blackout rule covers the
// instant.
func (c *Checker) blackedOut(date, at time.Time) (blackout, bool) {
	dateStr := date.Format("2006-01-02")
	for _, b := range c.blackouts {
		// Pad the search window a day each side; the rule anchors there.
		searchStart := date.AddDate(0, 0, -1)
		b.rule.DTStart(searchStart)
		hit := false
		for _, occ := range b.rule.Between(searchStart, date.AddDate(0, 0, 1), true) {
			if occ.Format("2006-01-02") == dateStr {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		if windowCovers(date, b.startTime, b.endTime, at) {
			return b, true
		}
	}
	return blackout{}, false
}

// windowCovers applies the entry window rules: no bounds covers the whole
// day, one bound is open-ended, both bounds are inclusive.
func windowCovers(date time.Time, startStr, endStr string, at time.Time) bool {
	start, hasStart := parseTimeOn(date, startStr)
	end, hasEnd := parseTimeOn(date, endStr)
	switch {
	case !hasStart && !hasEnd:
		return true
	case hasStart && !hasEnd:
		return !at.Before(start)
	case !hasStart && hasEnd:
		return !at.After(end)
	default:
		return !at.Before(start) && !at.After(end)
	}
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006", "2006/01/02"}
var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3 PM"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// parseTimeOn parses a clock time and places it on the given date.
func parseTimeOn(date time.Time, s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(date.Year(), date.Month(), date.Day(),
				t.Hour(), t.Minute(), 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
