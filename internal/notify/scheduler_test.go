package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/agenda-api/pkg/errors"
)

type capturingNotifier struct {
	mu        sync.Mutex
	delivered []Notification
	done      chan struct{}
}

func newCapturingNotifier() *capturingNotifier {
	return &capturingNotifier{done: make(chan struct{}, 8)}
}

func (c *capturingNotifier) Notify(ctx context.Context, n Notification) error {
	c.mu.Lock()
	c.delivered = append(c.delivered, n)
	c.mu.Unlock()
	c.done <- struct{}{}
	return nil
}

func (c *capturingNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.delivered)
}

func TestEnsurePermissionIdempotent(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Capable: true, AutoGrant: true})
	ctx := context.Background()

	first := s.EnsurePermission(ctx)
	assert.Equal(t, PermissionGranted, first)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, s.EnsurePermission(ctx))
	}
}

func TestEnsurePermissionNonCapableDevice(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Capable: false, AutoGrant: true})
	assert.Equal(t, PermissionDenied, s.EnsurePermission(context.Background()))
	assert.Equal(t, PermissionDenied, s.EnsurePermission(context.Background()))
}

func TestEnsurePermissionDeniedGrant(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Capable: true, AutoGrant: false})
	assert.Equal(t, PermissionDenied, s.EnsurePermission(context.Background()))
}

func TestScheduleAtDeniedNeverSchedules(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Capable: false})
	s.Start(context.Background())
	defer s.Stop()

	_, err := s.ScheduleAt(context.Background(), time.Now().Add(time.Hour), "AVISO!!", "corpo")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPermissionDenied.Code, appErrors.FromError(err).Code)
	assert.Zero(t, s.Pending())
}

func TestScheduleAtRejectsPastInstant(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Capable: true, AutoGrant: true})
	s.Start(context.Background())
	defer s.Stop()

	_, err := s.ScheduleAt(context.Background(), time.Now().Add(-time.Minute), "AVISO!!", "corpo")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScheduling.Code, appErrors.FromError(err).Code)
}

func TestScheduleAtFutureInstantReturnsHandle(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Capable: true, AutoGrant: true})
	s.Start(context.Background())
	defer s.Stop()

	handle, err := s.ScheduleAt(context.Background(), time.Now().Add(time.Hour), "AVISO!!", "corpo")
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.NotEmpty(t, handle.ID)
	assert.Equal(t, 1, s.Pending())

	handle.Cancel()
	assert.Zero(t, s.Pending())
	handle.Cancel()
}

func TestScheduleAtDeliversThroughNotifier(t *testing.T) {
	notifier := newCapturingNotifier()
	s := NewScheduler(SchedulerConfig{Capable: true, AutoGrant: true, Notifier: notifier})
	s.Start(context.Background())
	defer s.Stop()

	_, err := s.ScheduleAt(context.Background(), time.Now().Add(20*time.Millisecond), "AVISO!!", "Seu evento está prestes a começar!")
	require.NoError(t, err)

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
	assert.Equal(t, 1, notifier.count())
	assert.Zero(t, s.Pending())
}

func TestChannelSetupOnce(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		Capable:   true,
		AutoGrant: true,
		Channel:   Channel{Name: "default", Importance: "max", Vibration: []int{0, 250, 250, 250}},
	})
	s.Start(context.Background())
	defer s.Stop()

	for i := 0; i < 3; i++ {
		handle, err := s.ScheduleAt(context.Background(), time.Now().Add(time.Hour), "AVISO!!", "corpo")
		require.NoError(t, err)
		handle.Cancel()
	}
	// channelOnce guarantees a single configuration; reaching here without
	// a panic or duplicated state is the observable contract.
}
