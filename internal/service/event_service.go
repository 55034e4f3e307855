package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/agenda-api/internal/dto"
	"github.com/noah-isme/agenda-api/internal/models"
	"github.com/noah-isme/agenda-api/internal/notify"
	"github.com/noah-isme/agenda-api/pkg/datetime"
	appErrors "github.com/noah-isme/agenda-api/pkg/errors"
)

// Reminder text shown when a scheduled event is about to start.
const (
	ReminderTitle = "AVISO!!"
	ReminderBody  = "Seu evento está prestes a começar!"
)

const listCacheKey = "agenda:events:list"

// ListState tracks the lifecycle of the in-memory event list.
type ListState int

const (
	StateIdle ListState = iota
	StateLoading
	StateLoaded
	StateLoadFailed
)

// String returns the state name.
func (s ListState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateLoadFailed:
		return "load_failed"
	default:
		return "idle"
	}
}

type eventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	List(ctx context.Context) ([]models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type reminderScheduler interface {
	EnsurePermission(ctx context.Context) notify.Permission
	ScheduleAt(ctx context.Context, at time.Time, title, body string) (*notify.Handle, error)
}

type listCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// EventService owns the ordered event list, the single selection and the
// create/delete flows against the event store.
type EventService struct {
	repo      eventRepository
	scheduler reminderScheduler
	cache     listCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger

	mu         sync.Mutex
	state      ListState
	events     []models.Event
	selectedID string
	generation uint64
}

// NewEventService constructs the service. Scheduler and cache are optional.
func NewEventService(repo eventRepository, scheduler reminderScheduler, cache listCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &EventService{
		repo:      repo,
		scheduler: scheduler,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
		state:     StateIdle,
	}
}

// State reports the current list lifecycle state.
func (s *EventService) State() ListState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns a copy of the current ordered snapshot.
func (s *EventService) Events() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Refresh fetches the full list from the store, sorts it ascending by date
// and replaces the snapshot wholesale. A failed fetch keeps the previously
// displayed list. Overlapping calls are resolved by a generation token: only
// the latest issued request may publish its result.
func (s *EventService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	token := s.generation
	s.state = StateLoading
	s.mu.Unlock()

	events, err := s.repo.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.generation {
		// A newer refresh was issued while this one was in flight.
		return nil
	}
	if err != nil {
		s.state = StateLoadFailed
		return appErrors.Wrap(err, appErrors.ErrRemoteUnavailable.Code, appErrors.ErrRemoteUnavailable.Status, "failed to list events")
	}

	sortEventsByDate(events)
	s.events = events
	s.selectedID = ""
	s.state = StateLoaded
	return nil
}

// List serves the ordered event list, preferring the cached payload and
// refreshing from the store on a miss.
func (s *EventService) List(ctx context.Context) ([]models.Event, bool, error) {
	if s.cache != nil {
		var cached []models.Event
		if err := s.cache.Get(ctx, listCacheKey, &cached); err == nil {
			return cached, true, nil
		}
	}

	if err := s.Refresh(ctx); err != nil {
		// Stale-but-available beats a blank screen.
		if snapshot := s.Events(); len(snapshot) > 0 {
			return snapshot, false, nil
		}
		return nil, false, err
	}

	snapshot := s.Events()
	if s.cache != nil {
		if err := s.cache.Set(ctx, listCacheKey, snapshot, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache event list", zap.Error(err))
		}
	}
	return snapshot, false, nil
}

// Get returns one event by id.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	return event, nil
}

// Select marks the event with the given id as the active selection.
// Selecting while already selected replaces the selection.
func (s *EventService) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range s.events {
		if event.ID == id {
			s.selectedID = id
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrNotFound, "event not in current list")
}

// ClearSelection dismisses the active selection.
func (s *EventService) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedID = ""
}

// Selected resolves the active selection against the current list.
func (s *EventService) Selected() (*models.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedID == "" {
		return nil, false
	}
	for _, event := range s.events {
		if event.ID == s.selectedID {
			copied := event
			return &copied, true
		}
	}
	return nil, false
}

// DeleteSelected removes the selected event from the store, clears the
// selection and refreshes. Without a selection the store is never called.
// On failure the selection and list are left untouched.
func (s *EventService) DeleteSelected(ctx context.Context) error {
	s.mu.Lock()
	id := s.selectedID
	s.mu.Unlock()
	if id == "" {
		return appErrors.ErrNoSelection
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrRemoteUnavailable.Code, appErrors.ErrRemoteUnavailable.Status, "failed to delete event")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "event already removed")
	}

	s.ClearSelection()
	s.invalidateCache(ctx)
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after delete failed", zap.Error(err))
	}
	return nil
}

// Delete removes an event by id directly, bypassing the selection flow.
func (s *EventService) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrRemoteUnavailable.Code, appErrors.ErrRemoteUnavailable.Status, "failed to delete event")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	s.mu.Lock()
	if s.selectedID == id {
		s.selectedID = ""
	}
	s.mu.Unlock()
	s.invalidateCache(ctx)
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after delete failed", zap.Error(err))
	}
	return nil
}

// Create validates the draft, merges its date/time fields, persists the
// event and schedules a best-effort reminder. Scheduling failure never
// rolls back the persisted event.
func (s *EventService) Create(ctx context.Context, req dto.CreateEventRequest) (*models.Event, error) {
	if req.Hora == "" {
		req.Hora = "00"
	}
	if req.Minuto == "" {
		req.Minuto = "00"
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMissingFields.Code, appErrors.ErrMissingFields.Status, appErrors.ErrMissingFields.Message)
	}

	startsAt, err := datetime.Merge(req.Data, req.Hora, req.Minuto)
	if err != nil {
		return nil, err
	}

	event := &models.Event{
		Description: req.Descricao,
		Place:       req.Local,
		Date:        req.Data,
		Time:        fmt.Sprintf("%s:%s", req.Hora, req.Minuto),
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRemoteUnavailable.Code, appErrors.ErrRemoteUnavailable.Status, "failed to create event")
	}

	s.scheduleReminder(ctx, event, startsAt)
	s.invalidateCache(ctx)
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after create failed", zap.Error(err))
	}
	return event, nil
}

// scheduleReminder is best effort: permission denial and scheduling errors
// are logged, never propagated to the save flow.
func (s *EventService) scheduleReminder(ctx context.Context, event *models.Event, at time.Time) {
	if s.scheduler == nil {
		return
	}
	if s.scheduler.EnsurePermission(ctx) != notify.PermissionGranted {
		s.logger.Warn("reminder skipped, notification permission denied", zap.String("event_id", event.ID))
		return
	}
	handle, err := s.scheduler.ScheduleAt(ctx, at, ReminderTitle, ReminderBody)
	if err != nil {
		s.logger.Warn("reminder scheduling failed",
			zap.String("event_id", event.ID),
			zap.Time("at", at),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("reminder scheduled for event",
		zap.String("event_id", event.ID),
		zap.String("reminder_id", handle.ID),
	)
}

func (s *EventService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, listCacheKey); err != nil {
		s.logger.Warn("failed to invalidate event list cache", zap.Error(err))
	}
}

// sortEventsByDate orders ascending by the data field alone. Events on the
// same day keep their incoming relative order; hora is not part of the key.
func sortEventsByDate(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		di, erri := datetime.EventDate(events[i].Date)
		dj, errj := datetime.EventDate(events[j].Date)
		if erri != nil || errj != nil {
			return erri == nil && errj != nil
		}
		return di.Before(dj)
	})
}
