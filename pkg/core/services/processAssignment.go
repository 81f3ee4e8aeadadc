package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saferides/escort-dispatch/pkg/core/errs"
	"github.com/saferides/escort-dispatch/pkg/core/model"
	"github.com/saferides/escort-dispatch/pkg/core/rotation"
	"github.com/saferides/escort-dispatch/pkg/core/schedule"
	"github.com/saferides/escort-dispatch/pkg/core/status"
	"github.com/saferides/escort-dispatch/pkg/db"
	"github.com/saferides/escort-dispatch/pkg/metrics"
	"github.com/saferides/escort-dispatch/pkg/utils/keylock"
)

// assignmentIDPattern matches generated ids like "ASG-0042".
var assignmentIDPattern = regexp.MustCompile(`^ASG-(\d{4})$`)

// Rider outcome statuses inside a batch result.
const (
	OutcomeAssigned = "assigned"
	OutcomeFailed   = "failed"
)

// RiderOutcome is one rider's result within a batch.
type RiderOutcome struct {
	RiderName string
	Status    string
	Error     string
}

// Result is the structured outcome of a replace-all assignment call. A
// batch with per-rider failures still reports Success: the request-level
// operation completed and the failures are itemized.
type Result struct {
	BatchID       string
	RequestID     string
	Success       bool
	SuccessCount  int
	FailCount     int
	PerRider      []RiderOutcome
	RemovedRiders []string
	Status        model.RequestStatus
}

// Options tune one ProcessAssignment call.
type Options struct {
	// UsePriority advances the rotation with successfully assigned names.
	UsePriority bool
	// CheckAvailability gates each rider through the conflict/availability
	// checker; an unavailable rider becomes a per-rider failure. Off by
	// default: the check is advisory and callers opt in.
	CheckAvailability bool
}

// DefaultOptions matches the caller-facing defaults.
func DefaultOptions() Options {
	return Options{UsePriority: true}
}

// NotifierFunc delivers an assignment notice to one rider. The transport
// behind it is external; errors are logged, never returned to the batch.
type NotifierFunc func(ctx context.Context, messageID, riderName string, req model.Request) error

// Processor orchestrates replace-all assignment for a request.
type Processor struct {
	db         *db.DB
	rotation   *rotation.Manager
	checker    *schedule.Checker
	notify     NotifierFunc
	logger     *zap.Logger
	locks      *keylock.Locker
	writeDelay time.Duration
}

// NewProcessor wires a processor. checker and notify may be nil; writeDelay
// throttles consecutive row appends for rate-limited stores.
func NewProcessor(database *db.DB, rot *rotation.Manager, checker *schedule.Checker, notify NotifierFunc, logger *zap.Logger, writeDelay time.Duration) *Processor {
	return &Processor{
		db:         database,
		rotation:   rot,
		checker:    checker,
		notify:     notify,
		logger:     logger,
		locks:      keylock.New(),
		writeDelay: writeDelay,
	}
}

// ProcessAssignment replaces the request's assignment set with the given
// riders: existing rows are removed (their riders returned to the rotation
// front), new rows are created per rider with per-rider failure tolerance,
// the denormalized rider text and derived status are persisted, and the
// rotation advances past the newly assigned names.
func (p *Processor) ProcessAssignment(ctx context.Context, requestID string, riderNames []string, opts Options) (*Result, error) {
	requestID = strings.TrimSpace(requestID)
	if !model.ValidRequestID(requestID) {
		return nil, errs.NewValidation("requestId", fmt.Sprintf("malformed request id %q", requestID))
	}

	// Serialize the remove-then-recreate sequence per request.
	unlock := p.locks.Lock("assign:" + requestID)
	defer unlock()

	req, err := p.db.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RidersNeeded < 0 {
		return nil, errs.NewValidation("ridersNeeded", "must not be negative")
	}

	result := &Result{
		BatchID:   uuid.New().String(),
		RequestID: requestID,
	}

	p.logger.Info("Processing assignment",
		zap.String("batch_id", result.BatchID),
		zap.String("request_id", requestID),
		zap.Int("riders", len(riderNames)),
		zap.Bool("use_priority", opts.UsePriority),
		zap.Bool("check_availability", opts.CheckAvailability))

	removed, err := p.removeExisting(ctx, requestID)
	if err != nil {
		return nil, err
	}
	result.RemovedRiders = removed

	assigned := p.createAssignments(ctx, req, riderNames, opts, result)

	if err := p.finish(ctx, req, assigned, opts, result); err != nil {
		return nil, err
	}

	// Leave nothing stale behind whatever path got here.
	p.db.Cache().Clear(db.KeyRequests, db.KeyAssignments)

	result.Success = true
	p.logger.Info("Assignment processed",
		zap.String("batch_id", result.BatchID),
		zap.String("request_id", requestID),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("fail_count", result.FailCount),
		zap.String("status", string(result.Status)))
	return result, nil
}

// removeExisting deletes every assignment row for the request and returns
// the removed rider names to the rotation front. Zero rows is a no-op.
func (p *Processor) removeExisting(ctx context.Context, requestID string) ([]string, error) {
	existing, err := p.db.AssignmentsForRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	removed := make([]string, 0, len(existing))
	rows := make([]int, 0, len(existing))
	for _, a := range existing {
		rows = append(rows, a.RowIndex)
		if a.RiderName != "" {
			removed = append(removed, a.RiderName)
		}
	}
	if len(rows) == 0 {
		return removed, nil
	}

	if err := p.db.DeleteAssignmentRows(ctx, rows); err != nil {
		return nil, err
	}
	metrics.AssignmentsRemoved.Add(float64(len(rows)))
	p.logger.Debug("Removed existing assignments",
		zap.String("request_id", requestID),
		zap.Int("rows", len(rows)),
		zap.Strings("riders", removed))

	if len(removed) > 0 {
		if _, err := p.rotation.Retreat(ctx, removed); err != nil {
			return nil, fmt.Errorf("failed to retreat rotation: %w", err)
		}
	}
	return removed, nil
}

// createAssignments appends one row per rider, copying the request's
// schedule and locations. Each rider fails independently; the batch never
// aborts on one rider.
func (p *Processor) createAssignments(ctx context.Context, req *model.Request, riderNames []string, opts Options, result *Result) []string {
	nextSeq, seqOK := p.nextAssignmentSeq(ctx)
	assigned := make([]string, 0, len(riderNames))
	seen := make(map[string]struct{}, len(riderNames))

	for i, name := range riderNames {
		name = strings.TrimSpace(name)
		if name == "" {
			result.fail(name, "empty rider name")
			continue
		}
		key := model.NormalizeName(name)
		if _, dup := seen[key]; dup {
			result.fail(name, "duplicate rider in batch")
			continue
		}
		seen[key] = struct{}{}

		if opts.CheckAvailability && p.checker != nil &&
			!p.checker.IsRiderAvailable(ctx, name, req.EventDate, req.StartTime) {
			result.fail(name, "rider unavailable or conflicting")
			continue
		}

		var id string
		if seqOK {
			id = fmt.Sprintf("ASG-%04d", nextSeq)
			nextSeq++
		} else {
			// Numbering failed; a timestamp id keeps the batch moving.
			id = fmt.Sprintf("ASG-%d", time.Now().UnixNano())
		}

		a := model.Assignment{
			ID:                id,
			RequestID:         req.ID,
			RiderName:         name,
			EventDate:         req.EventDate,
			StartTime:         req.StartTime,
			EndTime:           req.EndTime,
			StartLocation:     req.StartLocation,
			EndLocation:       req.EndLocation,
			SecondaryLocation: req.SecondaryLocation,
			Status:            model.AssignmentAssigned,
			CreatedDate:       time.Now().Format("2006-01-02 15:04:05"),
		}

		if i > 0 && p.writeDelay > 0 {
			time.Sleep(p.writeDelay)
		}
		if err := p.db.AppendAssignment(ctx, a); err != nil {
			p.logger.Warn("Failed to create assignment",
				zap.String("request_id", req.ID),
				zap.String("rider", name),
				zap.Error(err))
			result.fail(name, err.Error())
			continue
		}

		metrics.AssignmentsCreated.Inc()
		assigned = append(assigned, name)
		result.PerRider = append(result.PerRider, RiderOutcome{RiderName: name, Status: OutcomeAssigned})
		result.SuccessCount++
	}
	return assigned
}

// finish writes the denormalized rider text, recomputes status, advances
// the rotation, and notifies the assigned riders.
func (p *Processor) finish(ctx context.Context, req *model.Request, assigned []string, opts Options, result *Result) error {
	if err := p.db.UpdateRequestField(ctx, req.RowIndex, model.HdrAssignedRiders, strings.Join(assigned, ", ")); err != nil {
		return err
	}

	newStatus, err := status.Apply(ctx, p.db, p.logger, req.ID)
	if err != nil {
		return err
	}
	result.Status = newStatus

	if req.RidersNeeded > 0 && len(assigned) > req.RidersNeeded {
		p.logger.Warn("Request over-assigned",
			zap.String("request_id", req.ID),
			zap.Int("needed", req.RidersNeeded),
			zap.Int("assigned", len(assigned)),
			zap.Int("overshoot", len(assigned)-req.RidersNeeded))
	}

	if opts.UsePriority && len(assigned) > 0 {
		if _, err := p.rotation.Advance(ctx, assigned); err != nil {
			return fmt.Errorf("failed to advance rotation: %w", err)
		}
	}

	if p.notify != nil {
		for _, name := range assigned {
			messageID := uuid.New().String()
			if err := p.notify(ctx, messageID, name, *req); err != nil {
				p.logger.Warn("Assignment notification failed",
					zap.String("request_id", req.ID),
					zap.String("rider", name),
					zap.String("message_id", messageID),
					zap.Error(err))
			}
		}
	}
	return nil
}

// nextAssignmentSeq scans existing ids for the highest ASG-#### sequence.
// The second return is false when the scan itself failed and callers must
// fall back to timestamp ids.
func (p *Processor) nextAssignmentSeq(ctx context.Context) (int, bool) {
	assignments, err := p.db.Assignments(ctx)
	if err != nil {
		p.logger.Warn("Assignment id scan failed, falling back to timestamp ids", zap.Error(err))
		return 0, false
	}
	max := 0
	for _, a := range assignments {
		m := assignmentIDPattern.FindStringSubmatch(a.ID)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max + 1, true
}

func (r *Result) fail(riderName, reason string) {
	metrics.AssignmentsFailed.Inc()
	r.PerRider = append(r.PerRider, RiderOutcome{
		RiderName: riderName,
		Status:    OutcomeFailed,
		Error:     reason,
	})
	r.FailCount++
}
