package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/agenda-api/pkg/errors"
	"github.com/noah-isme/agenda-api/pkg/jobs"
)

// Permission is the authorization state for local reminder delivery.
type Permission int

const (
	PermissionUndetermined Permission = iota
	PermissionGranted
	PermissionDenied
)

// String returns the lowercase permission name.
func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "undetermined"
	}
}

// Notification is a one-shot local alert payload.
type Notification struct {
	Title string    `json:"title"`
	Body  string    `json:"body"`
	At    time.Time `json:"at"`
}

// Notifier delivers a notification to the user. It is the boundary to the
// platform alert surface; delivery beyond it is out of scope.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes deliveries to the structured log. It is the default
// notifier on headless deployments.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify logs the delivered notification.
func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notification delivered",
		zap.String("title", n.Title),
		zap.String("body", n.Body),
		zap.Time("at", n.At),
	)
	return nil
}

// Channel describes the delivery channel configured once before the first
// scheduling request.
type Channel struct {
	Name       string
	Importance string
	Vibration  []int
}

// Handle identifies a scheduled reminder and allows cancelling it.
type Handle struct {
	ID string
	At time.Time

	cancel func()
	once   sync.Once
}

// Cancel discards the trigger if it has not fired yet. Safe to call twice.
func (h *Handle) Cancel() {
	if h == nil || h.cancel == nil {
		return
	}
	h.once.Do(h.cancel)
}

// SchedulerConfig wires the reminder scheduler.
type SchedulerConfig struct {
	Capable   bool
	AutoGrant bool
	Channel   Channel
	Workers   int
	Notifier  Notifier
	Logger    *zap.Logger
	Clock     func() time.Time
}

// Scheduler registers one-shot local reminder triggers. Permission handling
// is idempotent and channel setup happens exactly once.
type Scheduler struct {
	capable   bool
	autoGrant bool
	channel   Channel
	notifier  Notifier
	logger    *zap.Logger
	clock     func() time.Time

	queue       *jobs.Queue
	channelOnce sync.Once

	mu         sync.Mutex
	permission Permission
	timers     map[string]*time.Timer
}

// NewScheduler constructs the scheduler and its delivery queue.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = &LogNotifier{Logger: cfg.Logger}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	s := &Scheduler{
		capable:    cfg.Capable,
		autoGrant:  cfg.AutoGrant,
		channel:    cfg.Channel,
		notifier:   cfg.Notifier,
		logger:     cfg.Logger,
		clock:      cfg.Clock,
		permission: PermissionUndetermined,
		timers:     make(map[string]*time.Timer),
	}
	s.queue = jobs.NewQueue("reminders", s.deliver, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  cfg.Logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *Scheduler) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop cancels outstanding triggers and drains the workers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.queue.Stop()
}

// EnsurePermission queries the current authorization, requesting it when
// still undetermined. Repeated calls return the same stable outcome. A
// non-capable environment reports Denied rather than failing.
func (s *Scheduler) EnsurePermission(ctx context.Context) Permission {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.capable {
		if s.permission != PermissionDenied {
			s.logger.Warn("notifications require a capable device, denying")
		}
		s.permission = PermissionDenied
		return s.permission
	}
	if s.permission != PermissionUndetermined {
		return s.permission
	}
	if s.autoGrant {
		s.permission = PermissionGranted
	} else {
		s.permission = PermissionDenied
	}
	s.logger.Info("notification permission resolved", zap.Stringer("permission", s.permission))
	return s.permission
}

// ScheduleAt registers a one-shot trigger delivering the given title/body at
// the absolute instant. Past instants are rejected.
func (s *Scheduler) ScheduleAt(ctx context.Context, at time.Time, title, body string) (*Handle, error) {
	if s.EnsurePermission(ctx) != PermissionGranted {
		return nil, appErrors.ErrPermissionDenied
	}

	s.channelOnce.Do(s.setupChannel)

	now := s.clock()
	if !at.After(now) {
		return nil, appErrors.Clone(appErrors.ErrScheduling, "reminder instant is in the past")
	}

	id := uuid.NewString()
	notification := Notification{Title: title, Body: body, At: at}

	timer := time.AfterFunc(at.Sub(now), func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		if err := s.queue.Enqueue(jobs.Job{ID: id, Type: "reminder", Payload: notification}); err != nil {
			s.logger.Error("failed to enqueue reminder delivery", zap.String("reminder_id", id), zap.Error(err))
		}
	})

	s.mu.Lock()
	s.timers[id] = timer
	s.mu.Unlock()

	handle := &Handle{
		ID: id,
		At: at,
		cancel: func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if t, ok := s.timers[id]; ok {
				t.Stop()
				delete(s.timers, id)
			}
		},
	}

	s.logger.Info("reminder scheduled", zap.String("reminder_id", id), zap.Time("at", at))
	return handle, nil
}

// Pending reports how many triggers are armed but not yet fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) setupChannel() {
	s.logger.Info("notification channel configured",
		zap.String("channel", s.channel.Name),
		zap.String("importance", s.channel.Importance),
		zap.Ints("vibration_pattern", s.channel.Vibration),
	)
}

func (s *Scheduler) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(Notification)
	if !ok {
		s.logger.Error("unexpected reminder payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.notifier.Notify(ctx, notification)
}
