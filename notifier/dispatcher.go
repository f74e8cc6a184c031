package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
	"golang.org/x/time/rate"
)

type Channel interface {
	Name() string
	Send(ctx context.Context, user entity.User, n entity.Notification) error
}

type Options struct {
	RatePerSec int
	QueueSize  int
}

type job struct {
	events       []Event
	notification *entity.Notification
}

type Dispatcher struct {
	notifications repository.NotificationRepository
	directory     repository.DirectoryRepository
	channels      []Channel
	limiter       *rate.Limiter
	queue         chan job
	now           func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewDispatcher(notifications repository.NotificationRepository, directory repository.DirectoryRepository, opts Options, channels ...Channel) *Dispatcher {
	rps := opts.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	size := opts.QueueSize
	if size <= 0 {
		size = 256
	}
	return &Dispatcher{
		notifications: notifications,
		directory:     directory,
		channels:      channels,
		limiter:       rate.NewLimiter(rate.Limit(rps), rps),
		queue:         make(chan job, size),
		now:           time.Now,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	wctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.work(wctx)
	}()
}

// Stop はキューに残った分を処理してからワーカーを止める
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case j := <-d.queue:
			d.process(ctx, j, true)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case j := <-d.queue:
			d.process(context.Background(), j, false)
		default:
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, j job, throttle bool) {
	if j.notification != nil {
		d.deliver(ctx, *j.notification, throttle)
		return
	}
	for _, n := range d.persist(ctx, j.events) {
		d.deliver(ctx, n, throttle)
	}
}

// Dispatch は通知を同期で保存し、配送はワーカーに任せる。配送エラーは返さない
func (d *Dispatcher) Dispatch(ctx context.Context, events ...Event) []entity.Notification {
	created := d.persist(ctx, events)
	for i := range created {
		n := created[i]
		select {
		case d.queue <- job{notification: &n}:
		default:
			slog.Warn("notification queue is full, delivering inline", slog.Int64("notification_id", n.ID))
			d.deliver(ctx, n, false)
		}
	}
	return created
}

// Enqueue は保存も含めてワーカーに任せる。キューが溢れたらその場で処理する
func (d *Dispatcher) Enqueue(events ...Event) {
	if len(events) == 0 {
		return
	}
	select {
	case d.queue <- job{events: events}:
	default:
		slog.Warn("notification queue is full, dispatching inline", slog.Int("events", len(events)))
		d.process(context.Background(), job{events: events}, false)
	}
}

func (d *Dispatcher) persist(ctx context.Context, events []Event) []entity.Notification {
	var created []entity.Notification
	for _, e := range events {
		source := e.Source
		if source == "" {
			source = entity.NotificationSourceDispatch
		}
		for i, userID := range e.recipients() {
			n := entity.Notification{
				UserID:       userID,
				Title:        e.Title,
				Text:         e.Text,
				Source:       source,
				CreatedAt:    d.now(),
				DutyActionID: e.DutyActionID,
			}
			if i == 0 {
				n.ID = e.ReservedID
			}
			if err := d.notifications.CreateNotification(ctx, &n); err != nil {
				slog.Error("Failed to create notification", slog.Int64("user_id", userID), slog.String("title", e.Title), slog.Any("err", err))
				continue
			}
			created = append(created, n)
		}
	}
	return created
}

func (d *Dispatcher) deliver(ctx context.Context, n entity.Notification, throttle bool) {
	if len(d.channels) == 0 {
		return
	}
	user, err := d.directory.UserByID(ctx, n.UserID)
	if err != nil {
		slog.Warn("Skip delivery to unknown user", slog.Int64("user_id", n.UserID), slog.Any("err", err))
		return
	}
	for _, ch := range d.channels {
		if throttle {
			if err := d.limiter.Wait(ctx); err != nil {
				slog.Warn("notification delivery cancelled", slog.Any("err", err))
				return
			}
		}
		if err := ch.Send(ctx, *user, n); err != nil {
			slog.Error("Failed to deliver notification",
				slog.String("channel", ch.Name()),
				slog.Int64("notification_id", n.ID),
				slog.Int64("user_id", n.UserID),
				slog.Any("err", err),
			)
		}
	}
}

// Publisher は状態遷移のイベントを受け取る側
type Publisher interface {
	Dispatch(ctx context.Context, events ...Event) []entity.Notification
	Enqueue(events ...Event)
}

var _ Publisher = (*Dispatcher)(nil)
