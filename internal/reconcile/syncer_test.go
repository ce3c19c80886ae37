package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/complaint-hub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockStore struct{ mock.Mock }

func (m *mockStore) List(ctx context.Context, unreadOnly bool, limit int32) ([]domain.Notification, error) {
	args := m.Called(ctx, unreadOnly, limit)
	return args.Get(0).([]domain.Notification), args.Error(1)
}
func (m *mockStore) MarkRead(ctx context.Context, ids []string) error {
	return m.Called(ctx, ids).Error(0)
}
func (m *mockStore) MarkAllRead(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *mockStore) Clear(ctx context.Context, ids []string) error {
	return m.Called(ctx, ids).Error(0)
}
func (m *mockStore) ClearAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// --- tests ---

func TestRefresh_MergesFetchedRows(t *testing.T) {
	store := &mockStore{}
	s := NewSyncer(store, 100)

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	rows := []domain.Notification{
		notif("n-1", false, base),
		notif("n-2", true, base.Add(time.Minute)),
	}
	store.On("List", mock.Anything, false, int32(100)).Return(rows, nil).Once()

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 2, s.Cache().Len())
	assert.Equal(t, 1, s.Cache().UnreadCount())
	store.AssertExpectations(t)
}

func TestRefresh_StoreFailureLeavesCacheUntouched(t *testing.T) {
	store := &mockStore{}
	s := NewSyncer(store, 100)
	s.Cache().ApplyPush(notif("n-1", false, time.Now().UTC()))

	store.On("List", mock.Anything, false, int32(100)).
		Return([]domain.Notification{}, errors.New("store down")).Once()

	assert.Error(t, s.Refresh(context.Background()))
	assert.Equal(t, 1, s.Cache().Len())
}

func TestMarkRead_RevertsOnStoreFailure(t *testing.T) {
	store := &mockStore{}
	s := NewSyncer(store, 100)

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	s.Cache().Merge([]domain.Notification{notif("n-1", false, base)})

	store.On("MarkRead", mock.Anything, []string{"n-1"}).Return(errors.New("store down")).Once()

	err := s.MarkRead(context.Background(), []string{"n-1"})
	assert.Error(t, err)
	assert.Equal(t, 1, s.Cache().UnreadCount(), "optimistic read must be rolled back")
}

func TestMarkRead_TempIDsNeverReachStore(t *testing.T) {
	store := &mockStore{}
	s := NewSyncer(store, 100)

	s.HandlePush(domain.Notification{Type: domain.EventNewComment, SubjectID: "c-1", CreatedAt: time.Now().UTC()})
	tempID := s.Cache().List()[0].NotificationID

	// No store expectation: marking a temp entry read is purely local.
	require.NoError(t, s.MarkRead(context.Background(), []string{tempID}))
	assert.Equal(t, 0, s.Cache().UnreadCount())
	store.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything)
}

func TestMarkAllRead_RevertsOnStoreFailure(t *testing.T) {
	store := &mockStore{}
	s := NewSyncer(store, 100)

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	s.Cache().Merge([]domain.Notification{
		notif("n-1", false, base),
		notif("n-2", true, base),
	})

	store.On("MarkAllRead", mock.Anything).Return(errors.New("store down")).Once()

	assert.Error(t, s.MarkAllRead(context.Background()))
	// Only the entry the action flipped comes back unread.
	assert.Equal(t, 1, s.Cache().UnreadCount())
}

func TestClear_RestoresOnStoreFailure(t *testing.T) {
	store := &mockStore{}
	s := NewSyncer(store, 100)

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	s.Cache().Merge([]domain.Notification{notif("n-1", true, base)})

	store.On("Clear", mock.Anything, []string{"n-1"}).Return(errors.New("store down")).Once()

	assert.Error(t, s.Clear(context.Background(), []string{"n-1"}))
	got := s.Cache().List()
	require.Len(t, got, 1)
	assert.True(t, got[0].Read, "restored entry keeps its read state")
}

func TestClearAll_SuccessKeepsCacheEmpty(t *testing.T) {
	store := &mockStore{}
	s := NewSyncer(store, 100)

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	s.Cache().Merge([]domain.Notification{
		notif("n-1", false, base),
		notif("n-2", true, base),
	})

	store.On("ClearAll", mock.Anything).Return(nil).Once()

	require.NoError(t, s.ClearAll(context.Background()))
	assert.Equal(t, 0, s.Cache().Len())
	store.AssertExpectations(t)
}

func TestClearAll_RestoresOnStoreFailure(t *testing.T) {
	store := &mockStore{}
	s := NewSyncer(store, 100)

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	s.Cache().Merge([]domain.Notification{notif("n-1", false, base)})

	store.On("ClearAll", mock.Anything).Return(errors.New("store down")).Once()

	assert.Error(t, s.ClearAll(context.Background()))
	assert.Equal(t, 1, s.Cache().Len())

	// The clear marker is disarmed, so the next refresh repopulates.
	rows := []domain.Notification{notif("n-1", false, base), notif("n-2", false, base)}
	store.On("List", mock.Anything, false, int32(100)).Return(rows, nil).Once()
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 2, s.Cache().Len())
}
