// Package services exposes the engine's operations to external
// collaborators: replace-all assignment processing, request lookup, and
// the notification seam. It is an in-process library boundary; no network
// protocol lives here.
package services

import (
	"context"

	"github.com/saferides/escort-dispatch/pkg/core/errs"
	"github.com/saferides/escort-dispatch/pkg/core/model"
)

// RequestGetter is the slice of the repository request lookup needs.
type RequestGetter interface {
	GetRequestByID(ctx context.Context, id string) (*model.Request, error)
}

// GetRequestDetails returns the request snapshot for id, or nil when it
// does not exist. Store failures still surface as errors.
func GetRequestDetails(ctx context.Context, store RequestGetter, id string) (*model.Request, error) {
	req, err := store.GetRequestByID(ctx, id)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}
