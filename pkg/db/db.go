// Package db is the read side and write side of the dispatch tables: a
// thin repository over the table store with a read-through TTL cache and
// the point-lookup indexes the engine depends on. Every mutation
// invalidates the cache keys it touches before returning.
package db

import (
	"context"
	"sort"
	"strings"

	"github.com/saferides/escort-dispatch/pkg/cache"
	"github.com/saferides/escort-dispatch/pkg/core/errs"
	"github.com/saferides/escort-dispatch/pkg/core/model"
	"github.com/saferides/escort-dispatch/pkg/tablestore"
)

// Cache keys for the table snapshots.
const (
	KeyRequests     = "table:" + tablestore.TableRequests
	KeyRiders       = "table:" + tablestore.TableRiders
	KeyAssignments  = "table:" + tablestore.TableAssignments
	KeyAvailability = "table:" + tablestore.TableAvailability
)

// Index names built over the snapshots.
const (
	IndexByID    = "id"
	IndexByName  = "name"
	IndexByEmail = "email"
)

// DB provides cached access to the dispatch tables.
type DB struct {
	store tablestore.Store
	cache *cache.Cache
}

// NewDB creates a new repository over store with the given cache.
func NewDB(store tablestore.Store, c *cache.Cache) *DB {
	return &DB{store: store, cache: c}
}

// Store exposes the underlying table store for callers that must bypass
// the cache.
func (db *DB) Store() tablestore.Store { return db.store }

// Cache exposes the cache for explicit invalidation by writers.
func (db *DB) Cache() *cache.Cache { return db.cache }

// table returns the snapshot for name, reading through the cache. On a
// miss the fresh snapshot is cached with ttl and its indexes are rebuilt.
func (db *DB) table(ctx context.Context, name, key string, ttl cacheTTL) (*tablestore.Table, error) {
	if t := db.cache.GetTable(key); t != nil {
		return t, nil
	}
	t, err := db.store.ReadAll(ctx, name)
	if err != nil {
		return nil, errs.NewPersistence("read", name, err)
	}
	if ttl == ttlLong {
		db.cache.SetTTL(key, t, cache.LongTTL)
	} else {
		db.cache.Set(key, t)
	}
	db.buildIndexes(key, t)
	return t, nil
}

type cacheTTL int

const (
	ttlDefault cacheTTL = iota
	ttlLong
)

// buildIndexes attaches the point-lookup indexes for the snapshot that was
// just cached under key. Index extraction failures are impossible here:
// missing columns simply index nothing and lookups fall back to scans.
func (db *DB) buildIndexes(key string, t *tablestore.Table) {
	switch key {
	case KeyRequests:
		db.cache.CreateIndex(key, IndexByID, func(row []string, i int) string {
			return strings.TrimSpace(t.Cell(i, model.HdrRequestID))
		})
	case KeyRiders:
		db.cache.CreateIndex(key, IndexByName, func(row []string, i int) string {
			return model.NormalizeName(t.Cell(i, model.HdrName))
		})
		db.cache.CreateIndex(key, IndexByEmail, func(row []string, i int) string {
			return strings.ToLower(strings.TrimSpace(t.Cell(i, model.HdrEmail)))
		})
	}
}

// Requests returns all requests.
func (db *DB) Requests(ctx context.Context) ([]model.Request, error) {
	t, err := db.table(ctx, tablestore.TableRequests, KeyRequests, ttlDefault)
	if err != nil {
		return nil, err
	}
	return model.ParseRequests(t)
}

// GetRequestByID returns the request with the given id, or a NotFoundError.
func (db *DB) GetRequestByID(ctx context.Context, id string) (*model.Request, error) {
	t, err := db.table(ctx, tablestore.TableRequests, KeyRequests, ttlDefault)
	if err != nil {
		return nil, err
	}
	if e, ok := db.cache.FindByIndex(KeyRequests, IndexByID, strings.TrimSpace(id)); ok {
		return model.ParseRequestRow(t, e.RowIndex)
	}
	// Index may be gone (cleared entry, cold cache); fall back to a scan.
	requests, err := model.ParseRequests(t)
	if err != nil {
		return nil, err
	}
	for i := range requests {
		if requests[i].ID == strings.TrimSpace(id) {
			return &requests[i], nil
		}
	}
	return nil, errs.NewNotFound("request", id)
}

// Riders returns all riders. The riders table moves slowly and is cached
// with the long TTL.
func (db *DB) Riders(ctx context.Context) ([]model.Rider, error) {
	t, err := db.table(ctx, tablestore.TableRiders, KeyRiders, ttlLong)
	if err != nil {
		return nil, err
	}
	return model.ParseRiders(t)
}

// GetRiderByName returns the rider whose name matches (case-insensitive
// trim), or a NotFoundError.
func (db *DB) GetRiderByName(ctx context.Context, name string) (*model.Rider, error) {
	riders, err := db.Riders(ctx)
	if err != nil {
		return nil, err
	}
	want := model.NormalizeName(name)
	for i := range riders {
		if model.NormalizeName(riders[i].Name) == want {
			return &riders[i], nil
		}
	}
	return nil, errs.NewNotFound("rider", name)
}

// Assignments returns all assignments.
func (db *DB) Assignments(ctx context.Context) ([]model.Assignment, error) {
	t, err := db.table(ctx, tablestore.TableAssignments, KeyAssignments, ttlDefault)
	if err != nil {
		return nil, err
	}
	return model.ParseAssignments(t)
}

// AssignmentsForRequest returns the assignment rows for one request id.
func (db *DB) AssignmentsForRequest(ctx context.Context, requestID string) ([]model.Assignment, error) {
	assignments, err := db.Assignments(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]model.Assignment, 0)
	for _, a := range assignments {
		if a.RequestID == strings.TrimSpace(requestID) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

// AssignmentsForRider returns the non-deleted assignment rows naming the
// rider, matched case-insensitively.
func (db *DB) AssignmentsForRider(ctx context.Context, riderName string) ([]model.Assignment, error) {
	assignments, err := db.Assignments(ctx)
	if err != nil {
		return nil, err
	}
	want := model.NormalizeName(riderName)
	matched := make([]model.Assignment, 0)
	for _, a := range assignments {
		if model.NormalizeName(a.RiderName) == want {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

// AvailabilityEntries returns the full opt-out calendar.
func (db *DB) AvailabilityEntries(ctx context.Context) ([]model.AvailabilityEntry, error) {
	t, err := db.table(ctx, tablestore.TableAvailability, KeyAvailability, ttlDefault)
	if err != nil {
		return nil, err
	}
	return model.ParseAvailability(t)
}

// AppendAssignment writes a new assignment row laid out against the
// current header order, then invalidates the assignments snapshot.
func (db *DB) AppendAssignment(ctx context.Context, a model.Assignment) error {
	t, err := db.table(ctx, tablestore.TableAssignments, KeyAssignments, ttlDefault)
	if err != nil {
		return err
	}
	row := model.AssignmentRow(t, a)
	if err := db.store.AppendRow(ctx, tablestore.TableAssignments, row); err != nil {
		return errs.NewPersistence("append", tablestore.TableAssignments, err)
	}
	db.cache.Clear(KeyAssignments)
	return nil
}

// DeleteAssignmentRows deletes the given 1-based data rows, highest index
// first so earlier deletes don't shift later ones, then invalidates.
func (db *DB) DeleteAssignmentRows(ctx context.Context, rowIndexes []int) error {
	sorted := append([]int(nil), rowIndexes...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for _, idx := range sorted {
		if err := db.store.DeleteRow(ctx, tablestore.TableAssignments, idx); err != nil {
			db.cache.Clear(KeyAssignments)
			return errs.NewPersistence("delete", tablestore.TableAssignments, err)
		}
	}
	db.cache.Clear(KeyAssignments)
	return nil
}

// UpdateRequestField writes one request cell addressed by header name and
// invalidates the requests snapshot.
func (db *DB) UpdateRequestField(ctx context.Context, rowIndex int, header, value string) error {
	t, err := db.table(ctx, tablestore.TableRequests, KeyRequests, ttlDefault)
	if err != nil {
		return err
	}
	col := t.Col(header)
	if col < 0 {
		return errs.NewValidation(tablestore.TableRequests, "unknown header: "+header)
	}
	if err := db.store.UpdateCell(ctx, tablestore.TableRequests, rowIndex, col, value); err != nil {
		return errs.NewPersistence("update", tablestore.TableRequests, err)
	}
	db.cache.Clear(KeyRequests)
	return nil
}

// InvalidateAll drops every cached snapshot.
func (db *DB) InvalidateAll() {
	db.cache.Clear()
}
