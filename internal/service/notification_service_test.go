package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/insight-lab/research-go-api/internal/dto"
	"github.com/insight-lab/research-go-api/internal/models"
)

type fakeNotificationRepo struct {
	notifications map[uint]models.Notification
	nextID        uint
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[uint]models.Notification), nextID: 1}
}

func (f *fakeNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	notification.ID = f.nextID
	f.nextID++
	notification.CreatedAt = time.Now()
	f.notifications[notification.ID] = *notification
	return nil
}

func (f *fakeNotificationRepo) ListByRecipient(ctx context.Context, recipientID uint, limit, offset int) ([]models.Notification, error) {
	var result []models.Notification
	for id := uint(1); id < f.nextID; id++ {
		if notification, ok := f.notifications[id]; ok && notification.RecipientID == recipientID {
			result = append(result, notification)
		}
	}
	return result, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id, recipientID uint) (models.Notification, error) {
	notification, ok := f.notifications[id]
	if !ok || notification.RecipientID != recipientID {
		return models.Notification{}, gorm.ErrRecordNotFound
	}
	notification.Read = true
	f.notifications[id] = notification
	return notification, nil
}

func TestNotificationPublishPersistsAndBroadcasts(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, nil, "", nil, testValidator(), testLogger())

	stream, cleanup := svc.Subscribe(42)
	defer cleanup()

	published, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		RecipientID: 42,
		Type:        models.NotificationQuizInvitation,
		Title:       "Quiz Invitation",
		Message:     "You have been invited to <b>Go Basics</b>.",
	})
	require.NoError(t, err)
	require.Equal(t, "You have been invited to Go Basics.", published.Message)
	require.Len(t, repo.notifications, 1)

	select {
	case received := <-stream:
		require.Equal(t, published.ID, received.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the notification")
	}
}

func TestNotificationPublishRejectsEmptyMessage(t *testing.T) {
	svc := NewNotificationService(newFakeNotificationRepo(), nil, "", nil, testValidator(), testLogger())

	_, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		RecipientID: 42,
		Type:        models.NotificationQuizInvitation,
		Title:       "Quiz Invitation",
		Message:     "<script>alert(1)</script>",
	})
	require.Error(t, err)
}

func TestNotificationCrossNodeFanout(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	clientA := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientA.Close()
	clientB := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer clientB.Close()

	nodeA := NewNotificationService(newFakeNotificationRepo(), clientA, "insightlab", nil, testValidator(), testLogger())
	nodeB := NewNotificationService(newFakeNotificationRepo(), clientB, "insightlab", nil, testValidator(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nodeB.Start(ctx)

	stream, cleanup := nodeB.Subscribe(42)
	defer cleanup()

	// The consumer goroutine needs a moment to establish its subscription.
	time.Sleep(100 * time.Millisecond)

	_, err = nodeA.Publish(context.Background(), dto.NotificationCreateRequest{
		RecipientID: 42,
		Type:        models.NotificationQuizGraded,
		Title:       "Quiz Graded",
		Message:     "Your attempt has been graded.",
	})
	require.NoError(t, err)

	select {
	case received := <-stream:
		require.Equal(t, uint(42), received.RecipientID)
		require.Equal(t, models.NotificationQuizGraded, received.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("notification did not fan out across nodes")
	}
}

func TestNotificationMarkRead(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, nil, "", nil, testValidator(), testLogger())

	published, err := svc.Publish(context.Background(), dto.NotificationCreateRequest{
		RecipientID: 42,
		Type:        models.NotificationQuizSubmitted,
		Title:       "Quiz Submitted",
		Message:     "A participant submitted an attempt.",
	})
	require.NoError(t, err)
	require.False(t, published.Read)

	read, err := svc.MarkRead(context.Background(), published.ID, 42)
	require.NoError(t, err)
	require.True(t, read.Read)

	_, err = svc.MarkRead(context.Background(), published.ID, 99)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestNotificationUnsubscribeClosesChannel(t *testing.T) {
	svc := NewNotificationService(newFakeNotificationRepo(), nil, "", nil, testValidator(), testLogger())

	stream, cleanup := svc.Subscribe(42)
	cleanup()

	_, open := <-stream
	require.False(t, open)
}
