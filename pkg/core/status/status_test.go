package status

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saferides/escort-dispatch/pkg/core/model"
)

func TestCountAssigned(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"single name", "Alice", 1},
		{"comma separated", "Alice, Bob", 2},
		{"newline separated", "Alice\nBob\nCarol", 3},
		{"mixed separators", "Alice, Bob\nCarol", 3},
		{"duplicates collapse", "Alice, alice, ALICE", 1},
		{"tbd excluded", "Alice, TBD", 1},
		{"tbd any case", "tbd, Tbd", 0},
		{"blank segments", "Alice, , ,Bob", 2},
		{"whitespace only", "  ,  \n ", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountAssigned(tt.text))
		})
	}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name   string
		needed int
		text   string
		want   model.RequestStatus
	}{
		{"zero assigned", 2, "", model.RequestUnassigned},
		{"under target", 2, "Alice", model.RequestUnassigned},
		{"exact target", 2, "Alice, Bob", model.RequestAssigned},
		{"over target", 2, "Alice, Bob, Carol", model.RequestAssigned},
		{"zero needed zero assigned", 0, "", model.RequestUnassigned},
		{"zero needed one assigned", 0, "Alice", model.RequestAssigned},
		{"placeholder does not count", 1, "TBD", model.RequestUnassigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.needed, tt.text))
		})
	}
}

// mockRequestStore implements RequestStore for Apply tests
type mockRequestStore struct {
	request   *model.Request
	getErr    error
	updateErr error
	updates   map[string]string
}

func (m *mockRequestStore) GetRequestByID(ctx context.Context, id string) (*model.Request, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.request, nil
}

func (m *mockRequestStore) UpdateRequestField(ctx context.Context, rowIndex int, header, value string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if m.updates == nil {
		m.updates = make(map[string]string)
	}
	m.updates[header] = value
	return nil
}

func TestApply_PersistsDerivedStatus(t *testing.T) {
	mock := &mockRequestStore{
		request: &model.Request{
			ID:             "B-02-24",
			RidersNeeded:   2,
			AssignedRiders: "Alice, Bob",
			Status:         model.RequestUnassigned,
			RowIndex:       3,
		},
	}

	got, err := Apply(context.Background(), mock, zap.NewNop(), "B-02-24")
	require.NoError(t, err)
	assert.Equal(t, model.RequestAssigned, got)
	assert.Equal(t, string(model.RequestAssigned), mock.updates[model.HdrStatus])
	assert.NotEmpty(t, mock.updates[model.HdrLastUpdated])
}

func TestApply_NoWriteWhenUnchanged(t *testing.T) {
	mock := &mockRequestStore{
		request: &model.Request{
			ID:             "B-02-24",
			RidersNeeded:   2,
			AssignedRiders: "Alice",
			Status:         model.RequestUnassigned,
			RowIndex:       1,
		},
	}

	got, err := Apply(context.Background(), mock, zap.NewNop(), "B-02-24")
	require.NoError(t, err)
	assert.Equal(t, model.RequestUnassigned, got)
	assert.Empty(t, mock.updates)
}

func TestApply_PropagatesStoreErrors(t *testing.T) {
	mock := &mockRequestStore{getErr: errors.New("read failed")}

	_, err := Apply(context.Background(), mock, zap.NewNop(), "B-02-24")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read failed")

	mock = &mockRequestStore{
		request: &model.Request{
			ID:             "B-02-24",
			RidersNeeded:   1,
			AssignedRiders: "Alice",
			Status:         model.RequestUnassigned,
		},
		updateErr: errors.New("write failed"),
	}
	_, err = Apply(context.Background(), mock, zap.NewNop(), "B-02-24")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write failed")
}
