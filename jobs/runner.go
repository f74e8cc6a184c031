package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type Job func(ctx context.Context) error

type entry struct {
	spec string
	job  Job
}

// Runner は名前付きジョブを cron で回す。同じジョブは同時に1つしか走らない
type Runner struct {
	loc    *time.Location
	parser cron.Parser

	mu      sync.Mutex
	entries map[string]entry
	c       *cron.Cron
	cancel  context.CancelFunc
}

func NewRunner(loc *time.Location) *Runner {
	if loc == nil {
		loc = time.Local
	}
	return &Runner{
		loc:     loc,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		entries: map[string]entry{},
	}
}

func (r *Runner) Register(name, spec string, job Job) error {
	if _, err := r.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{spec: spec, job: job}
	return nil
}

func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return nil
	}
	logger := slogLogger{}
	c := cron.New(
		cron.WithParser(r.parser),
		cron.WithLocation(r.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	ctx, cancel := context.WithCancel(ctx)
	for name, e := range r.entries {
		name, e := name, e
		if _, err := c.AddFunc(e.spec, func() { r.execute(ctx, name, e.job) }); err != nil {
			cancel()
			return fmt.Errorf("failed to schedule job %s: %w", name, err)
		}
	}
	c.Start()
	r.c = c
	r.cancel = cancel
	slog.Info("job runner started", slog.String("tz", r.loc.String()), slog.Int("jobs", len(r.entries)))
	return nil
}

// Stop は実行中のジョブの終了を待つ
func (r *Runner) Stop() {
	r.mu.Lock()
	c, cancel := r.c, r.cancel
	r.c, r.cancel = nil, nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	cancel()
	slog.Info("job runner stopped")
}

// Run は名前を指定してジョブを1回だけ実行する
func (r *Runner) Run(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return r.execute(ctx, name, e.job)
}

func (r *Runner) execute(ctx context.Context, name string, job Job) error {
	started := time.Now()
	err := job(ctx)
	if err != nil {
		slog.Error("Job failed",
			slog.String("job", name),
			slog.Duration("elapsed", time.Since(started)),
			slog.Any("err", err),
		)
		return err
	}
	slog.Debug("job finished", slog.String("job", name), slog.Duration("elapsed", time.Since(started)))
	return nil
}

// slogLogger は cron のログを slog に流す
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
