package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saferides/escort-dispatch/internal/config"
	"github.com/saferides/escort-dispatch/pkg/cache"
	"github.com/saferides/escort-dispatch/pkg/core/errs"
	"github.com/saferides/escort-dispatch/pkg/core/model"
	"github.com/saferides/escort-dispatch/pkg/core/rotation"
	"github.com/saferides/escort-dispatch/pkg/core/schedule"
	"github.com/saferides/escort-dispatch/pkg/db"
	"github.com/saferides/escort-dispatch/pkg/tablestore"
)

type testEnv struct {
	store     *tablestore.Memory
	database  *db.DB
	rotation  *rotation.Manager
	processor *Processor
	notified  []string
}

func newTestEnv(t *testing.T, rules ...config.BlackoutRule) *testEnv {
	t.Helper()
	store := tablestore.NewMemory()
	store.CreateTable(tablestore.TableRequests, []string{
		"Request ID", "Event Date", "Start Time", "End Time",
		"Start Location", "End Location", "Secondary Location",
		"Riders Needed", "Assigned Riders", "Status", "Last Updated",
	})
	store.CreateTable(tablestore.TableRiders, []string{
		"Rider ID", "Name", "Phone", "Email", "Status", "Part Time",
	})
	store.CreateTable(tablestore.TableAssignments, []string{
		"Assignment ID", "Request ID", "Rider Name", "Event Date",
		"Start Time", "End Time", "Start Location", "End Location",
		"Secondary Location", "Status", "Created Date", "Notified At", "Confirmed At",
	})
	store.CreateTable(tablestore.TableAvailability, []string{
		"Rider ID", "Email", "Date", "Start Time", "End Time", "Status",
	})

	logger := zap.NewNop()
	env := &testEnv{store: store}
	env.database = db.NewDB(store, cache.New())
	env.rotation = rotation.NewManager(store, env.database, logger)
	checker := schedule.NewChecker(env.database, logger, rules)
	notify := func(ctx context.Context, messageID, riderName string, req model.Request) error {
		env.notified = append(env.notified, riderName)
		return nil
	}
	env.processor = NewProcessor(env.database, env.rotation, checker, notify, logger, 0)
	return env
}

func (e *testEnv) addRequest(t *testing.T, id, date, start, needed string) {
	t.Helper()
	require.NoError(t, e.store.AppendRow(context.Background(), tablestore.TableRequests,
		[]string{id, date, start, "18:00", "Town Hall", "Clinic", "", needed, "", "New", ""}))
}

func (e *testEnv) addRider(t *testing.T, id, name string) {
	t.Helper()
	require.NoError(t, e.store.AppendRow(context.Background(), tablestore.TableRiders,
		[]string{id, name, "555-0100", strings.ToLower(name) + "@example.org", "Active", ""}))
}

func (e *testEnv) assignments(t *testing.T, requestID string) []model.Assignment {
	t.Helper()
	e.database.Cache().Clear()
	rows, err := e.database.AssignmentsForRequest(context.Background(), requestID)
	require.NoError(t, err)
	return rows
}

func (e *testEnv) request(t *testing.T, id string) *model.Request {
	t.Helper()
	e.database.Cache().Clear()
	req, err := e.database.GetRequestByID(context.Background(), id)
	require.NoError(t, err)
	return req
}

func TestProcessAssignment_Scenario(t *testing.T) {
	env := newTestEnv(t)
	env.addRequest(t, "B-02-24", "2024-03-15", "14:00", "2")
	env.addRider(t, "R-1", "Alice")
	env.addRider(t, "R-2", "Bob")
	ctx := context.Background()

	result, err := env.processor.ProcessAssignment(ctx, "B-02-24", []string{"Alice", "Bob"}, DefaultOptions())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 0, result.FailCount)
	assert.Equal(t, model.RequestAssigned, result.Status)
	assert.NotEmpty(t, result.BatchID)

	rows := env.assignments(t, "B-02-24")
	require.Len(t, rows, 2)
	assert.Equal(t, "ASG-0001", rows[0].ID)
	assert.Equal(t, "ASG-0002", rows[1].ID)
	assert.Equal(t, "2024-03-15", rows[0].EventDate)
	assert.Equal(t, "Town Hall", rows[0].StartLocation)
	assert.Equal(t, model.AssignmentAssigned, rows[0].Status)

	req := env.request(t, "B-02-24")
	assert.Equal(t, model.RequestAssigned, req.Status)
	assert.Equal(t, "Alice, Bob", req.AssignedRiders)

	// Re-assign with only Alice: old rows removed, one new row, status drops.
	result, err = env.processor.ProcessAssignment(ctx, "B-02-24", []string{"Alice"}, DefaultOptions())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, result.RemovedRiders)
	assert.Equal(t, model.RequestUnassigned, result.Status)

	rows = env.assignments(t, "B-02-24")
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0].RiderName)

	req = env.request(t, "B-02-24")
	assert.Equal(t, model.RequestUnassigned, req.Status)
	assert.Equal(t, "Alice", req.AssignedRiders)
}

func TestProcessAssignment_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	env.addRequest(t, "B-02-24", "2024-03-15", "14:00", "2")
	env.addRider(t, "R-1", "Alice")
	env.addRider(t, "R-2", "Bob")
	ctx := context.Background()

	riders := []string{"Alice", "Bob"}
	_, err := env.processor.ProcessAssignment(ctx, "B-02-24", riders, DefaultOptions())
	require.NoError(t, err)
	_, err = env.processor.ProcessAssignment(ctx, "B-02-24", riders, DefaultOptions())
	require.NoError(t, err)

	rows := env.assignments(t, "B-02-24")
	assert.Len(t, rows, 2)
}

func TestProcessAssignment_UnknownRequest(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.processor.ProcessAssignment(context.Background(), "Z-99-24", []string{"Alice"}, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestProcessAssignment_MalformedRequestID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.processor.ProcessAssignment(context.Background(), "nonsense", []string{"Alice"}, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestProcessAssignment_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	env.addRequest(t, "B-02-24", "2024-03-15", "14:00", "2")
	env.addRider(t, "R-1", "Alice")
	ctx := context.Background()

	result, err := env.processor.ProcessAssignment(ctx, "B-02-24",
		[]string{"Alice", "", "alice"}, DefaultOptions())
	require.NoError(t, err)

	// Blank and duplicate riders fail individually; the batch completes.
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 2, result.FailCount)
	require.Len(t, result.PerRider, 3)

	byName := make(map[string]RiderOutcome)
	for _, o := range result.PerRider {
		byName[o.RiderName+"/"+o.Status] = o
	}
	assert.Contains(t, byName, "Alice/"+OutcomeAssigned)
	assert.Contains(t, byName, "/"+OutcomeFailed)
	assert.Contains(t, byName, "alice/"+OutcomeFailed)

	rows := env.assignments(t, "B-02-24")
	assert.Len(t, rows, 1)
}

func TestProcessAssignment_EmptyListClearsRequest(t *testing.T) {
	env := newTestEnv(t)
	env.addRequest(t, "B-02-24", "2024-03-15", "14:00", "1")
	env.addRider(t, "R-1", "Alice")
	ctx := context.Background()

	_, err := env.processor.ProcessAssignment(ctx, "B-02-24", []string{"Alice"}, DefaultOptions())
	require.NoError(t, err)

	result, err := env.processor.ProcessAssignment(ctx, "B-02-24", nil, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"Alice"}, result.RemovedRiders)
	assert.Equal(t, model.RequestUnassigned, result.Status)
	assert.Empty(t, env.assignments(t, "B-02-24"))
}

func TestProcessAssignment_RotationEffects(t *testing.T) {
	env := newTestEnv(t)
	env.addRequest(t, "B-02-24", "2024-03-15", "14:00", "1")
	env.addRider(t, "R-1", "Alice")
	env.addRider(t, "R-2", "Bob")
	env.addRider(t, "R-3", "Carol")
	ctx := context.Background()

	// Seeded order is alphabetical.
	order, err := env.rotation.GetOrder(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Alice", "Bob", "Carol"}, order)

	_, err = env.processor.ProcessAssignment(ctx, "B-02-24", []string{"Alice"}, DefaultOptions())
	require.NoError(t, err)

	order, err = env.rotation.GetOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Carol", "Alice"}, order)

	// Replacing Alice with Bob returns her to the front.
	_, err = env.processor.ProcessAssignment(ctx, "B-02-24", []string{"Bob"}, DefaultOptions())
	require.NoError(t, err)

	order, err = env.rotation.GetOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Carol", "Bob"}, order)
}

func TestProcessAssignment_NoPrioritySkipsRotation(t *testing.T) {
	env := newTestEnv(t)
	env.addRequest(t, "B-02-24", "2024-03-15", "14:00", "1")
	env.addRider(t, "R-1", "Alice")
	env.addRider(t, "R-2", "Bob")
	ctx := context.Background()

	order, err := env.rotation.GetOrder(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Alice", "Bob"}, order)

	opts := DefaultOptions()
	opts.UsePriority = false
	_, err = env.processor.ProcessAssignment(ctx, "B-02-24", []string{"Alice"}, opts)
	require.NoError(t, err)

	order, err = env.rotation.GetOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, order)
}

func TestProcessAssignment_CheckAvailability(t *testing.T) {
	env := newTestEnv(t)
	env.addRequest(t, "B-02-24", "2024-03-15", "14:00", "2")
	env.addRider(t, "R-1", "Alice")
	env.addRider(t, "R-2", "Bob")
	ctx := context.Background()

	// Alice has opted out of the whole day.
	require.NoError(t, env.store.AppendRow(ctx, tablestore.TableAvailability,
		[]string{"R-1", "alice@example.org", "2024-03-15", "", "", "Unavailable"}))

	opts := DefaultOptions()
	opts.CheckAvailability = true
	result, err := env.processor.ProcessAssignment(ctx, "B-02-24", []string{"Alice", "Bob"}, opts)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailCount)

	rows := env.assignments(t, "B-02-24")
	require.Len(t, rows, 1)
	assert.Equal(t, "Bob", rows[0].RiderName)
}

func TestProcessAssignment_NotifiesAssignedRiders(t *testing.T) {
	env := newTestEnv(t)
	env.addRequest(t, "B-02-24", "2024-03-15", "14:00", "2")
	env.addRider(t, "R-1", "Alice")
	env.addRider(t, "R-2", "Bob")

	_, err := env.processor.ProcessAssignment(context.Background(), "B-02-24",
		[]string{"Alice", "Bob"}, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"Alice", "Bob"}, env.notified)
}

func TestProcessAssignment_OverAssignmentStillAssigned(t *testing.T) {
	env := newTestEnv(t)
	env.addRequest(t, "B-02-24", "2024-03-15", "14:00", "1")
	env.addRider(t, "R-1", "Alice")
	env.addRider(t, "R-2", "Bob")

	result, err := env.processor.ProcessAssignment(context.Background(), "B-02-24",
		[]string{"Alice", "Bob"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, model.RequestAssigned, result.Status)
	assert.Equal(t, 2, result.SuccessCount)
}

func TestGetRequestDetails(t *testing.T) {
	env := newTestEnv(t)
	env.addRequest(t, "B-02-24", "2024-03-15", "14:00", "2")
	ctx := context.Background()

	req, err := GetRequestDetails(ctx, env.database, "B-02-24")
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, "B-02-24", req.ID)

	req, err = GetRequestDetails(ctx, env.database, "Z-99-24")
	require.NoError(t, err)
	assert.Nil(t, req)
}
