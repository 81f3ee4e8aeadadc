// Package status derives a request's fulfillment status from its assigned
// rider count. Derivation is pure; Apply persists the result.
package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saferides/escort-dispatch/pkg/core/errs"
	"github.com/saferides/escort-dispatch/pkg/core/model"
)

// placeholder names excluded from counting, compared case-insensitively.
const placeholderTBD = "tbd"

// timestampLayout is the Last Updated cell format.
const timestampLayout = "2006-01-02 15:04:05"

// CountAssigned counts distinct, trimmed, non-empty rider names in the
// denormalized assigned-riders text, splitting on commas and newlines and
// ignoring the "TBD" placeholder.
func CountAssigned(assignedText string) int {
	seen := make(map[string]struct{})
	for _, part := range strings.FieldsFunc(assignedText, func(r rune) bool {
		return r == ',' || r == '\n'
	}) {
		name := model.NormalizeName(part)
		if name == "" || name == placeholderTBD {
			continue
		}
		seen[name] = struct{}{}
	}
	return len(seen)
}

// Derive computes the fulfillment status: Unassigned while the distinct
// assigned count is below ridersNeeded (or zero), Assigned once it meets
// or exceeds it.
func Derive(ridersNeeded int, assignedText string) model.RequestStatus {
	count := CountAssigned(assignedText)
	if count == 0 || count < ridersNeeded {
		return model.RequestUnassigned
	}
	return model.RequestAssigned
}

// RequestStore is the slice of the repository Apply needs.
type RequestStore interface {
	GetRequestByID(ctx context.Context, id string) (*model.Request, error)
	UpdateRequestField(ctx context.Context, rowIndex int, header, value string) error
}

// Apply recomputes the request's status from its current row and persists
// it together with a fresh Last Updated stamp. Store errors propagate.
func Apply(ctx context.Context, store RequestStore, logger *zap.Logger, requestID string) (model.RequestStatus, error) {
	req, err := store.GetRequestByID(ctx, requestID)
	if err != nil {
		return "", fmt.Errorf("failed to load request for status update: %w", err)
	}

	derived := Derive(req.RidersNeeded, req.AssignedRiders)
	if derived == req.Status {
		logger.Debug("Status unchanged",
			zap.String("request_id", requestID),
			zap.String("status", string(derived)))
		return derived, nil
	}

	if err := store.UpdateRequestField(ctx, req.RowIndex, model.HdrStatus, string(derived)); err != nil {
		return "", fmt.Errorf("failed to persist status: %w", err)
	}
	// Tables without a Last Updated column skip the stamp.
	if err := store.UpdateRequestField(ctx, req.RowIndex, model.HdrLastUpdated, time.Now().Format(timestampLayout)); err != nil && !errs.IsValidation(err) {
		return "", fmt.Errorf("failed to persist last updated: %w", err)
	}

	logger.Info("Request status updated",
		zap.String("request_id", requestID),
		zap.String("from", string(req.Status)),
		zap.String("to", string(derived)))
	return derived, nil
}
