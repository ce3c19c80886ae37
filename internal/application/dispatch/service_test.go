package dispatch

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

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishToUser(userID string, event domain.EventType, payload interface{}) {
	m.Called(userID, event, payload)
}
func (m *mockPublisher) PublishToRole(role string, event domain.EventType, payload interface{}, exceptUserID string) {
	m.Called(role, event, payload, exceptUserID)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type mockDirectory struct{ mock.Mock }

func (m *mockDirectory) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockDirectory) ListActiveByRole(ctx context.Context, role string) ([]domain.User, error) {
	args := m.Called(ctx, role)
	return args.Get(0).([]domain.User), args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockSMS struct{ mock.Mock }

func (m *mockSMS) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

// --- helpers ---

func newTestService(pub *mockPublisher, st *mockStore, dir *mockDirectory, mail *mockMailer, sms *mockSMS) *Service {
	return NewService(Deps{
		Publisher: pub,
		Store:     st,
		Directory: dir,
		Mailer:    mail,
		SMS:       sms,
		DedupTTL:  2 * time.Second,
	})
}

func commentEvent(target string) domain.Event {
	return domain.Event{
		Type:       domain.EventNewComment,
		SubjectID:  "c-42",
		TargetUser: target,
		Title:      "New comment on your complaint",
		Message:    "We are looking into it.",
	}
}

// --- tests ---

func TestDispatch_UserTarget_PublishesAndPersists(t *testing.T) {
	pub, st := &mockPublisher{}, &mockStore{}
	svc := newTestService(pub, st, &mockDirectory{}, nil, nil)

	pub.On("PublishToUser", "u1", domain.EventNewComment, mock.Anything).Once()
	st.On("Put", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == "u1" && n.Type == domain.EventNewComment &&
			n.SubjectID == "c-42" && !n.Read && n.NotificationID != ""
	})).Return(nil).Once()

	require.NoError(t, svc.Dispatch(context.Background(), commentEvent("u1")))

	// Durable write happens even though a live session received the push:
	// the two channels are not mutually exclusive.
	pub.AssertExpectations(t)
	st.AssertExpectations(t)
}

func TestDispatch_NoTarget_IsRejected(t *testing.T) {
	svc := newTestService(&mockPublisher{}, &mockStore{}, &mockDirectory{}, nil, nil)
	err := svc.Dispatch(context.Background(), domain.Event{Type: domain.EventNewComment, SubjectID: "c-1"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestDispatch_DuplicateWithinWindow_Suppressed(t *testing.T) {
	pub, st := &mockPublisher{}, &mockStore{}
	svc := newTestService(pub, st, &mockDirectory{}, nil, nil)

	base := time.Now()
	svc.now = func() time.Time { return base }

	pub.On("PublishToUser", "u1", domain.EventNewComment, mock.Anything).Once()
	st.On("Put", mock.Anything, mock.Anything).Return(nil).Once()

	require.NoError(t, svc.Dispatch(context.Background(), commentEvent("u1")))

	// A double-submit one second later produces nothing.
	svc.now = func() time.Time { return base.Add(time.Second) }
	require.NoError(t, svc.Dispatch(context.Background(), commentEvent("u1")))

	pub.AssertNumberOfCalls(t, "PublishToUser", 1)
	st.AssertNumberOfCalls(t, "Put", 1)
}

func TestDispatch_DuplicateAfterWindow_Delivered(t *testing.T) {
	pub, st := &mockPublisher{}, &mockStore{}
	svc := newTestService(pub, st, &mockDirectory{}, nil, nil)

	base := time.Now()
	svc.now = func() time.Time { return base }

	pub.On("PublishToUser", "u1", domain.EventNewComment, mock.Anything).Twice()
	st.On("Put", mock.Anything, mock.Anything).Return(nil).Twice()

	require.NoError(t, svc.Dispatch(context.Background(), commentEvent("u1")))

	svc.now = func() time.Time { return base.Add(5 * time.Second) }
	require.NoError(t, svc.Dispatch(context.Background(), commentEvent("u1")))

	pub.AssertExpectations(t)
	st.AssertExpectations(t)
}

func TestDispatch_PersistFailure_ReturnedButPublishStillHappened(t *testing.T) {
	pub, st := &mockPublisher{}, &mockStore{}
	svc := newTestService(pub, st, &mockDirectory{}, nil, nil)

	pub.On("PublishToUser", "u1", domain.EventNewComment, mock.Anything).Once()
	st.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down")).Once()

	err := svc.Dispatch(context.Background(), commentEvent("u1"))
	assert.Error(t, err)
	pub.AssertExpectations(t)
}

func TestDispatch_RoleTarget_OneRowPerMember_ActorExcluded(t *testing.T) {
	pub, st, dir := &mockPublisher{}, &mockStore{}, &mockDirectory{}
	svc := newTestService(pub, st, dir, nil, nil)

	dir.On("ListActiveByRole", mock.Anything, domain.RoleAdmin).Return([]domain.User{
		{UserID: "a1"}, {UserID: "a2"}, {UserID: "a3"},
	}, nil).Once()

	// The role-channel publish carries no durable id, rows are per member,
	// and the actor's own sessions are excluded from the live channel too.
	pub.On("PublishToRole", domain.RoleAdmin, domain.EventNewComplaint,
		mock.MatchedBy(func(n *domain.Notification) bool {
			return n.NotificationID == "" && n.UserID == ""
		}), "a2").Once()

	var recipients []string
	st.On("Put", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		recipients = append(recipients, args.Get(1).(*domain.Notification).UserID)
	}).Return(nil).Twice()

	ev := domain.Event{
		Type:        domain.EventNewComplaint,
		SubjectID:   "c-7",
		TargetRole:  domain.RoleAdmin,
		ActorUserID: "a2",
		Title:       "New complaint filed",
	}
	require.NoError(t, svc.Dispatch(context.Background(), ev))

	assert.ElementsMatch(t, []string{"a1", "a3"}, recipients)
	pub.AssertExpectations(t)
	dir.AssertExpectations(t)
}

func TestDispatch_RoleTarget_OneMemberFailing_DoesNotStarveOthers(t *testing.T) {
	pub, st, dir := &mockPublisher{}, &mockStore{}, &mockDirectory{}
	svc := newTestService(pub, st, dir, nil, nil)

	dir.On("ListActiveByRole", mock.Anything, domain.RoleStaff).Return([]domain.User{
		{UserID: "s1"}, {UserID: "s2"}, {UserID: "s3"},
	}, nil).Once()
	pub.On("PublishToRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Once()

	st.On("Put", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == "s2"
	})).Return(errors.New("write failed")).Once()
	st.On("Put", mock.Anything, mock.Anything).Return(nil).Twice()

	ev := domain.Event{
		Type:       domain.EventStatusChanged,
		SubjectID:  "c-9",
		TargetRole: domain.RoleStaff,
		Title:      "Status changed",
	}
	err := svc.Dispatch(context.Background(), ev)

	assert.Error(t, err)
	st.AssertNumberOfCalls(t, "Put", 3)
}

func TestDispatch_ReminderDue_SendsEmailWhenPreferred(t *testing.T) {
	pub, st, dir, mail := &mockPublisher{}, &mockStore{}, &mockDirectory{}, &mockMailer{}
	svc := newTestService(pub, st, dir, mail, nil)

	pub.On("PublishToUser", "u1", domain.EventReminderDue, mock.Anything).Once()
	st.On("Put", mock.Anything, mock.Anything).Return(nil).Once()
	dir.On("Get", mock.Anything, "u1").Return(&domain.User{
		UserID:         "u1",
		Email:          "u1@example.com",
		EmailReminders: true,
	}, nil).Once()
	mail.On("SendEmail", "u1@example.com", "Reminder due", mock.Anything).Return(nil).Once()

	ev := domain.Event{
		Type:       domain.EventReminderDue,
		SubjectID:  "r-1",
		TargetUser: "u1",
		Title:      "Reminder due",
		Message:    "Follow up with the reporter",
	}
	require.NoError(t, svc.Dispatch(context.Background(), ev))
	mail.AssertExpectations(t)
}

func TestDispatch_ReminderDue_NoEmailWhenOptedOut(t *testing.T) {
	pub, st, dir, mail := &mockPublisher{}, &mockStore{}, &mockDirectory{}, &mockMailer{}
	svc := newTestService(pub, st, dir, mail, nil)

	pub.On("PublishToUser", mock.Anything, mock.Anything, mock.Anything).Once()
	st.On("Put", mock.Anything, mock.Anything).Return(nil).Once()
	dir.On("Get", mock.Anything, "u1").Return(&domain.User{
		UserID: "u1",
		Email:  "u1@example.com",
	}, nil).Once()

	ev := domain.Event{Type: domain.EventReminderDue, SubjectID: "r-1", TargetUser: "u1", Title: "Reminder due"}
	require.NoError(t, svc.Dispatch(context.Background(), ev))
	mail.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_ReminderDue_NotSubjectToDispatchDedup(t *testing.T) {
	pub, st, dir := &mockPublisher{}, &mockStore{}, &mockDirectory{}
	svc := newTestService(pub, st, dir, nil, nil)

	pub.On("PublishToUser", mock.Anything, mock.Anything, mock.Anything).Twice()
	st.On("Put", mock.Anything, mock.Anything).Return(nil).Twice()
	dir.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil).Twice()

	ev := domain.Event{Type: domain.EventReminderDue, SubjectID: "r-1", TargetUser: "u1", Title: "Reminder due"}
	require.NoError(t, svc.Dispatch(context.Background(), ev))
	require.NoError(t, svc.Dispatch(context.Background(), ev))

	// The scheduler owns reminder de-duplication with its own window.
	pub.AssertExpectations(t)
	st.AssertExpectations(t)
}
