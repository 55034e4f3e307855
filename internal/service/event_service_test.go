package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agenda-api/internal/dto"
	"github.com/noah-isme/agenda-api/internal/models"
	"github.com/noah-isme/agenda-api/internal/notify"
	appErrors "github.com/noah-isme/agenda-api/pkg/errors"
)

type eventRepoStub struct {
	mu      sync.Mutex
	seq     int
	events  []models.Event
	listErr error
	delErr  error
	// listGate, when set, is received from before List returns so tests can
	// hold a fetch in flight.
	listGate chan struct{}
}

func (s *eventRepoStub) Create(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if event.ID == "" {
		event.ID = fmt.Sprintf("evt-%d", s.seq)
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *eventRepoStub) List(ctx context.Context) ([]models.Event, error) {
	if s.listGate != nil {
		<-s.listGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Event, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *eventRepoStub) GetByID(ctx context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range s.events {
		if event.ID == id {
			copied := event
			return &copied, nil
		}
	}
	return nil, errors.New("no rows")
}

func (s *eventRepoStub) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return false, s.delErr
	}
	for i, event := range s.events {
		if event.ID == id {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type schedulerStub struct {
	permission    notify.Permission
	scheduleCalls int
	scheduledAt   time.Time
	scheduleErr   error
}

func (s *schedulerStub) EnsurePermission(ctx context.Context) notify.Permission {
	return s.permission
}

func (s *schedulerStub) ScheduleAt(ctx context.Context, at time.Time, title, body string) (*notify.Handle, error) {
	s.scheduleCalls++
	s.scheduledAt = at
	if s.scheduleErr != nil {
		return nil, s.scheduleErr
	}
	return &notify.Handle{ID: "rem-1", At: at}, nil
}

func newTestService(repo *eventRepoStub, scheduler *schedulerStub) *EventService {
	return NewEventService(repo, scheduler, nil, 0, validator.New(), nil)
}

func TestCreatePersistsAndSchedules(t *testing.T) {
	repo := &eventRepoStub{}
	scheduler := &schedulerStub{permission: notify.PermissionGranted}
	svc := newTestService(repo, scheduler)

	event, err := svc.Create(context.Background(), dto.CreateEventRequest{
		Descricao: "Reunião",
		Local:     "Rua A, 100",
		Data:      "25/12/2125",
		Hora:      "14",
		Minuto:    "30",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "14:30", event.Time)
	assert.Equal(t, 1, scheduler.scheduleCalls)
	assert.Equal(t, 14, scheduler.scheduledAt.Hour())
	assert.Equal(t, 30, scheduler.scheduledAt.Minute())

	events := svc.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Reunião", events[0].Description)
	assert.Equal(t, StateLoaded, svc.State())
}

func TestCreateMissingFields(t *testing.T) {
	repo := &eventRepoStub{}
	svc := newTestService(repo, &schedulerStub{permission: notify.PermissionGranted})

	_, err := svc.Create(context.Background(), dto.CreateEventRequest{
		Descricao: "Reunião",
		Data:      "25/12/2125",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMissingFields.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.events)
}

func TestCreateMidnightDefaultsAccepted(t *testing.T) {
	repo := &eventRepoStub{}
	svc := newTestService(repo, &schedulerStub{permission: notify.PermissionGranted})

	event, err := svc.Create(context.Background(), dto.CreateEventRequest{
		Descricao: "Plantão",
		Local:     "Hospital",
		Data:      "01/06/2125",
	})
	require.NoError(t, err)
	assert.Equal(t, "00:00", event.Time)
}

func TestCreateInvalidDateTimeDistinctFromMissing(t *testing.T) {
	repo := &eventRepoStub{}
	svc := newTestService(repo, &schedulerStub{permission: notify.PermissionGranted})

	_, err := svc.Create(context.Background(), dto.CreateEventRequest{
		Descricao: "Reunião",
		Local:     "Rua A, 100",
		Data:      "30/02/2024",
		Hora:      "10",
		Minuto:    "00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidDateTime.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.events)
}

func TestCreatePermissionDeniedStillPersists(t *testing.T) {
	repo := &eventRepoStub{}
	scheduler := &schedulerStub{permission: notify.PermissionDenied}
	svc := newTestService(repo, scheduler)

	event, err := svc.Create(context.Background(), dto.CreateEventRequest{
		Descricao: "Reunião",
		Local:     "Rua A, 100",
		Data:      "25/12/2125",
		Hora:      "14",
		Minuto:    "30",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Zero(t, scheduler.scheduleCalls, "scheduleAt must not run when permission is denied")
	require.Len(t, repo.events, 1)
}

func TestCreateSchedulingFailureDoesNotRollBack(t *testing.T) {
	repo := &eventRepoStub{}
	scheduler := &schedulerStub{permission: notify.PermissionGranted, scheduleErr: appErrors.ErrScheduling}
	svc := newTestService(repo, scheduler)

	_, err := svc.Create(context.Background(), dto.CreateEventRequest{
		Descricao: "Reunião",
		Local:     "Rua A, 100",
		Data:      "25/12/2125",
		Hora:      "14",
		Minuto:    "30",
	})
	require.NoError(t, err)
	require.Len(t, repo.events, 1)
}

func TestRefreshSortsAscendingByDate(t *testing.T) {
	repo := &eventRepoStub{events: []models.Event{
		{ID: "c", Description: "depois", Place: "x", Date: "10/03/2026", Time: "12:00"},
		{ID: "a", Description: "antes", Place: "y", Date: "25/12/2025", Time: "14:30"},
		{ID: "b", Description: "meio", Place: "z", Date: "01/01/2026", Time: "08:00"},
	}}
	svc := newTestService(repo, nil)

	require.NoError(t, svc.Refresh(context.Background()))
	events := svc.Events()
	require.Len(t, events, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{events[0].ID, events[1].ID, events[2].ID})
}

func TestRefreshSameDayKeepsIncomingOrder(t *testing.T) {
	repo := &eventRepoStub{events: []models.Event{
		{ID: "late", Date: "25/12/2025", Time: "18:00", Description: "d", Place: "p"},
		{ID: "early", Date: "25/12/2025", Time: "08:00", Description: "d", Place: "p"},
	}}
	svc := newTestService(repo, nil)

	require.NoError(t, svc.Refresh(context.Background()))
	events := svc.Events()
	// Sorting ignores hora, so the stored order survives for equal dates.
	assert.Equal(t, "late", events[0].ID)
}

func TestRefreshFailurePreservesPreviousList(t *testing.T) {
	repo := &eventRepoStub{events: []models.Event{
		{ID: "a", Date: "25/12/2025", Time: "14:30", Description: "d", Place: "p"},
	}}
	svc := newTestService(repo, nil)
	require.NoError(t, svc.Refresh(context.Background()))

	repo.mu.Lock()
	repo.listErr = errors.New("network down")
	repo.mu.Unlock()

	err := svc.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRemoteUnavailable.Code, appErrors.FromError(err).Code)
	assert.Equal(t, StateLoadFailed, svc.State())
	assert.Len(t, svc.Events(), 1, "stale list beats a blank screen")
}

func TestRefreshStaleResponseDiscarded(t *testing.T) {
	gate := make(chan struct{})
	repo := &eventRepoStub{
		events:   []models.Event{{ID: "a", Date: "25/12/2025", Time: "14:30", Description: "d", Place: "p"}},
		listGate: gate,
	}
	svc := newTestService(repo, nil)

	done := make(chan error, 1)
	go func() {
		done <- svc.Refresh(context.Background())
	}()

	// Let the first call pass the gate only after a newer one completed.
	repo.mu.Lock()
	repo.events = append(repo.events, models.Event{ID: "b", Date: "26/12/2025", Time: "10:00", Description: "d", Place: "p"})
	repo.mu.Unlock()

	second := make(chan error, 1)
	go func() {
		second <- svc.Refresh(context.Background())
	}()
	gate <- struct{}{} // release one in-flight List
	gate <- struct{}{} // release the other
	require.NoError(t, <-second)
	require.NoError(t, <-done)

	// Whichever call was older must not have overwritten the newest result.
	assert.Len(t, svc.Events(), 2)
	assert.Equal(t, StateLoaded, svc.State())
}

func TestDeleteSelectedWithoutSelection(t *testing.T) {
	repo := &eventRepoStub{events: []models.Event{
		{ID: "a", Date: "25/12/2025", Time: "14:30", Description: "d", Place: "p"},
	}}
	svc := newTestService(repo, nil)
	require.NoError(t, svc.Refresh(context.Background()))

	err := svc.DeleteSelected(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoSelection.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.events, 1, "store must never be called without a selection")
}

func TestSelectDeleteRefreshCycle(t *testing.T) {
	repo := &eventRepoStub{events: []models.Event{
		{ID: "a", Date: "25/12/2025", Time: "14:30", Description: "d", Place: "p"},
		{ID: "b", Date: "26/12/2025", Time: "10:00", Description: "d", Place: "p"},
	}}
	svc := newTestService(repo, nil)
	require.NoError(t, svc.Refresh(context.Background()))

	require.NoError(t, svc.Select("a"))
	selected, ok := svc.Selected()
	require.True(t, ok)
	assert.Equal(t, "a", selected.ID)

	require.NoError(t, svc.DeleteSelected(context.Background()))

	_, ok = svc.Selected()
	assert.False(t, ok)
	events := svc.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "b", events[0].ID)
}

func TestDeleteSelectedFailurePreservesSelection(t *testing.T) {
	repo := &eventRepoStub{events: []models.Event{
		{ID: "a", Date: "25/12/2025", Time: "14:30", Description: "d", Place: "p"},
	}}
	svc := newTestService(repo, nil)
	require.NoError(t, svc.Refresh(context.Background()))
	require.NoError(t, svc.Select("a"))

	repo.mu.Lock()
	repo.delErr = errors.New("network down")
	repo.mu.Unlock()

	err := svc.DeleteSelected(context.Background())
	require.Error(t, err)
	selected, ok := svc.Selected()
	require.True(t, ok, "selection survives a failed delete")
	assert.Equal(t, "a", selected.ID)
	assert.Len(t, svc.Events(), 1, "list is not refreshed after a failed delete")
}

func TestSelectUnknownEvent(t *testing.T) {
	svc := newTestService(&eventRepoStub{}, nil)
	require.NoError(t, svc.Refresh(context.Background()))
	err := svc.Select("ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSelectionClearedByRefresh(t *testing.T) {
	repo := &eventRepoStub{events: []models.Event{
		{ID: "a", Date: "25/12/2025", Time: "14:30", Description: "d", Place: "p"},
	}}
	svc := newTestService(repo, nil)
	require.NoError(t, svc.Refresh(context.Background()))
	require.NoError(t, svc.Select("a"))

	require.NoError(t, svc.Refresh(context.Background()))
	_, ok := svc.Selected()
	assert.False(t, ok)
}

func TestCreateRoundTripSortedPosition(t *testing.T) {
	repo := &eventRepoStub{events: []models.Event{
		{ID: "later", Date: "31/12/2125", Time: "23:00", Description: "réveillon", Place: "praia"},
	}}
	svc := newTestService(repo, &schedulerStub{permission: notify.PermissionGranted})

	_, err := svc.Create(context.Background(), dto.CreateEventRequest{
		Descricao: "Reunião",
		Local:     "Rua A, 100",
		Data:      "25/12/2125",
		Hora:      "14",
		Minuto:    "30",
	})
	require.NoError(t, err)

	events := svc.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "Reunião", events[0].Description)
	assert.Equal(t, "réveillon", events[1].Description)
}
