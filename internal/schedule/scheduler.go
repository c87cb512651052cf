// Package schedule fires configured pipeline and lane triggers on cron
// expressions. Each entry goes through the same trigger chain as an
// interactive command, with the deferred build link posted to the entry's
// Slack channel.
package schedule

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/alekspetrov/shipbot/internal/config"
	"github.com/alekspetrov/shipbot/internal/logging"
	"github.com/alekspetrov/shipbot/internal/trigger"
)

// Source marks invocations originating from the scheduler.
const Source = "schedule"

// Triggerer starts the asynchronous trigger chain and returns the
// acknowledgment. *trigger.Service satisfies it.
type Triggerer interface {
	Trigger(inv *trigger.Invocation, mode trigger.Mode, req *trigger.Request, responder trigger.Responder) string
}

// ResponderFactory builds the deferred-reply responder for an entry's
// channel. A nil factory, or a factory returning nil, leaves the entry's
// outcome in the logs only.
type ResponderFactory func(channel string) trigger.Responder

// Scheduler manages cron-driven triggers
type Scheduler struct {
	triggerer     Triggerer
	project       string
	defaultBranch string
	entries       []*config.ScheduleConfig
	responders    ResponderFactory
	cron          *cron.Cron
	ids           map[string]cron.EntryID
	mu            sync.Mutex
	running       bool
	logger        *slog.Logger
}

// NewScheduler creates a scheduler for the given entries. Entries are
// expected to have passed config validation.
func NewScheduler(triggerer Triggerer, project, defaultBranch string, entries []*config.ScheduleConfig, responders ResponderFactory) *Scheduler {
	return &Scheduler{
		triggerer:     triggerer,
		project:       project,
		defaultBranch: defaultBranch,
		entries:       entries,
		responders:    responders,
		cron:          cron.New(),
		ids:           make(map[string]cron.EntryID),
		logger:        logging.WithComponent("schedule"),
	}
}

// Start registers all entries and begins the cron loop. Starting with no
// entries is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if len(s.entries) == 0 {
		s.logger.Info("No schedules configured")
		return nil
	}

	for _, entry := range s.entries {
		id, err := s.cron.AddFunc(s.cronSpec(entry), func() {
			s.fire(entry)
		})
		if err != nil {
			return fmt.Errorf("schedule %q: %w", entry.Name, err)
		}
		s.ids[entry.Name] = id
	}

	s.cron.Start()
	s.running = true

	for _, entry := range s.entries {
		s.logger.Info("Schedule registered",
			slog.String("schedule", entry.Name),
			slog.String("cron", entry.Cron),
			slog.Time("next_run", s.cron.Entry(s.ids[entry.Name]).Next))
	}

	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("Scheduler stopped")
}

// IsRunning returns whether the cron loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next run time for a named entry, or the zero time
// when the entry is unknown or the scheduler is stopped.
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return time.Time{}
	}
	id, ok := s.ids[name]
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// RunNow fires a named entry immediately, outside its cron schedule.
func (s *Scheduler) RunNow(name string) error {
	for _, entry := range s.entries {
		if entry.Name == name {
			s.fire(entry)
			return nil
		}
	}
	return fmt.Errorf("unknown schedule %q", name)
}

// EntryStatus describes one schedule entry's cron state.
type EntryStatus struct {
	Name     string
	Cron     string
	Timezone string
	NextRun  time.Time
	LastRun  time.Time
}

// Status returns the state of every entry in configuration order.
func (s *Scheduler) Status() []EntryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]EntryStatus, 0, len(s.entries))
	for _, entry := range s.entries {
		status := EntryStatus{
			Name:     entry.Name,
			Cron:     entry.Cron,
			Timezone: entry.Timezone,
		}
		if s.running {
			if id, ok := s.ids[entry.Name]; ok {
				cronEntry := s.cron.Entry(id)
				status.NextRun = cronEntry.Next
				status.LastRun = cronEntry.Prev
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// cronSpec builds the cron expression, carrying the entry timezone via the
// CRON_TZ prefix when the timezone resolves.
func (s *Scheduler) cronSpec(entry *config.ScheduleConfig) string {
	if entry.Timezone == "" {
		return entry.Cron
	}
	if _, err := time.LoadLocation(entry.Timezone); err != nil {
		s.logger.Warn("Invalid schedule timezone, using server time",
			slog.String("schedule", entry.Name),
			slog.String("timezone", entry.Timezone),
			slog.Any("error", err))
		return entry.Cron
	}
	return "CRON_TZ=" + entry.Timezone + " " + entry.Cron
}

// fire builds the trigger for one entry and starts its chain.
func (s *Scheduler) fire(entry *config.ScheduleConfig) {
	inv, mode, req, err := s.buildTrigger(entry)
	if err != nil {
		s.logger.Error("Schedule cannot build a trigger",
			slog.String("schedule", entry.Name),
			slog.Any("error", err))
		return
	}

	var responder trigger.Responder
	if s.responders != nil && entry.Channel != "" {
		responder = s.responders(entry.Channel)
	}

	s.logger.Info("Schedule fired",
		slog.String("schedule", entry.Name),
		slog.String("invocation_id", inv.ID),
		slog.String("command", inv.Command),
		slog.String("branch", req.Branch))

	s.triggerer.Trigger(inv, mode, req, responder)
}

// buildTrigger turns a schedule entry into an invocation and a resolved
// request. The entry's branch field outranks a branch option inside the
// options string, which outranks the default branch.
func (s *Scheduler) buildTrigger(entry *config.ScheduleConfig) (*trigger.Invocation, trigger.Mode, *trigger.Request, error) {
	name := entry.Pipeline
	mode := trigger.ModePipeline
	if entry.Lane != "" {
		name = entry.Lane
		mode = trigger.ModeLane
	}

	tokens := strings.Fields(entry.Options)
	parsed, err := trigger.Parse(append([]string{name}, tokens...))
	if err != nil {
		return nil, "", nil, err
	}

	var params trigger.ParameterSet
	if mode == trigger.ModeLane {
		params = trigger.LaneParameters(parsed.Name, parsed.Rest)
	} else {
		params = trigger.PipelineParameters(parsed.Name, parsed.Options)
	}

	branch := entry.Branch
	if branch == "" {
		branch = trigger.ResolveBranch(parsed.Options, "", s.defaultBranch)
	}

	req, err := trigger.NewRequest(s.project, branch, params)
	if err != nil {
		return nil, "", nil, err
	}

	inv := &trigger.Invocation{
		ID:      uuid.New().String(),
		Command: parsed.Name,
		Args:    parsed.Rest,
		Source:  Source,
		Channel: entry.Channel,
		User:    entry.Name,
		Text:    entry.Options,
	}

	return inv, mode, req, nil
}
