package schedule

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alekspetrov/shipbot/internal/config"
	"github.com/alekspetrov/shipbot/internal/logging"
	"github.com/alekspetrov/shipbot/internal/trigger"
)

var _ Triggerer = (*trigger.Service)(nil)

func init() {
	logging.Suppress()
}

// fakeTriggerer records trigger chains without starting them. RunNow and
// fire call it on the test goroutine, so no locking is needed.
type fakeTriggerer struct {
	invocations []*trigger.Invocation
	modes       []trigger.Mode
	requests    []*trigger.Request
	responders  []trigger.Responder
}

func (f *fakeTriggerer) Trigger(inv *trigger.Invocation, mode trigger.Mode, req *trigger.Request, responder trigger.Responder) string {
	f.invocations = append(f.invocations, inv)
	f.modes = append(f.modes, mode)
	f.requests = append(f.requests, req)
	f.responders = append(f.responders, responder)
	return trigger.AckMessage
}

type recordingResponder struct {
	channel string
}

func (r *recordingResponder) Respond(ctx context.Context, inv *trigger.Invocation, text string) error {
	return nil
}

func newScheduler(triggerer Triggerer, entries ...*config.ScheduleConfig) *Scheduler {
	responders := func(channel string) trigger.Responder {
		return &recordingResponder{channel: channel}
	}
	return NewScheduler(triggerer, "acme/ios-app", "develop", entries, responders)
}

// TestRunNowPipeline tests that a pipeline entry builds discrete parameters
// and resolves its branch from the options string.
func TestRunNowPipeline(t *testing.T) {
	triggerer := &fakeTriggerer{}
	sched := newScheduler(triggerer, &config.ScheduleConfig{
		Name:     "nightly",
		Cron:     "0 2 * * *",
		Pipeline: "build_ios",
		Options:  "version:3.13.0 branch:release/3.13.0",
		Channel:  "ios-build",
	})

	if err := sched.RunNow("nightly"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if len(triggerer.invocations) != 1 {
		t.Fatalf("Trigger called %d times, want 1", len(triggerer.invocations))
	}

	inv := triggerer.invocations[0]
	if inv.Command != "build_ios" || inv.Source != Source || inv.Channel != "ios-build" {
		t.Errorf("Unexpected invocation: %+v", inv)
	}
	if inv.User != "nightly" {
		t.Errorf("User = %q, want schedule name", inv.User)
	}
	if inv.ID == "" {
		t.Error("Invocation has no ID")
	}

	if triggerer.modes[0] != trigger.ModePipeline {
		t.Errorf("mode = %q, want pipeline", triggerer.modes[0])
	}

	req := triggerer.requests[0]
	if req.Project != "acme/ios-app" {
		t.Errorf("Project = %q", req.Project)
	}
	if req.Branch != "release/3.13.0" {
		t.Errorf("Branch = %q, want release/3.13.0 from the branch option", req.Branch)
	}
	if !req.Parameters["build_ios"].BoolValue() {
		t.Error("build_ios flag not injected")
	}
	if req.Parameters["push"].BoolValue() {
		t.Error("push should be false")
	}
	if req.Parameters["version"].StringValue() != "3.13.0" {
		t.Errorf("version = %q", req.Parameters["version"].StringValue())
	}

	if r, ok := triggerer.responders[0].(*recordingResponder); !ok || r.channel != "ios-build" {
		t.Errorf("Responder not built for the entry channel: %v", triggerer.responders[0])
	}
}

// TestRunNowLane tests that a lane entry packs its options into the
// three-key lane parameter shape.
func TestRunNowLane(t *testing.T) {
	triggerer := &fakeTriggerer{}
	sched := newScheduler(triggerer, &config.ScheduleConfig{
		Name:    "weekly-beta",
		Cron:    "0 9 * * 1",
		Lane:    "beta",
		Options: "target:Babylon device:iPhone11",
		Channel: "releases",
	})

	if err := sched.RunNow("weekly-beta"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}

	if triggerer.modes[0] != trigger.ModeLane {
		t.Errorf("mode = %q, want lane", triggerer.modes[0])
	}

	req := triggerer.requests[0]
	if req.Branch != "develop" {
		t.Errorf("Branch = %q, want the default branch", req.Branch)
	}
	params := req.Parameters
	if len(params) != 3 {
		t.Fatalf("Lane parameters have %d keys, want 3: %v", len(params), params.Names())
	}
	if params["lane"].StringValue() != "beta" {
		t.Errorf("lane = %q", params["lane"].StringValue())
	}
	if params["options"].StringValue() != "target:Babylon device:iPhone11" {
		t.Errorf("options = %q", params["options"].StringValue())
	}
	if params["push"].BoolValue() {
		t.Error("push should be false")
	}
}

// TestBranchField tests that the entry's branch field outranks both the
// branch option and the default.
func TestBranchField(t *testing.T) {
	triggerer := &fakeTriggerer{}
	sched := newScheduler(triggerer, &config.ScheduleConfig{
		Name:     "pinned",
		Cron:     "@daily",
		Pipeline: "build_ios",
		Branch:   "release/hotfix",
		Options:  "branch:main",
	})

	if err := sched.RunNow("pinned"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}

	req := triggerer.requests[0]
	if req.Branch != "release/hotfix" {
		t.Errorf("Branch = %q, want the entry's branch field", req.Branch)
	}
	// The branch option still rides along as a pipeline parameter.
	if req.Parameters["branch"].StringValue() != "main" {
		t.Errorf("branch parameter = %q, want main", req.Parameters["branch"].StringValue())
	}
}

// TestNoChannelNoResponder tests that entries without a channel trigger
// with a nil responder.
func TestNoChannelNoResponder(t *testing.T) {
	triggerer := &fakeTriggerer{}
	sched := newScheduler(triggerer, &config.ScheduleConfig{
		Name:     "silent",
		Cron:     "@daily",
		Pipeline: "build_ios",
	})

	if err := sched.RunNow("silent"); err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if triggerer.responders[0] != nil {
		t.Errorf("Responder = %v, want nil without a channel", triggerer.responders[0])
	}
}

func TestRunNowUnknownEntry(t *testing.T) {
	sched := newScheduler(&fakeTriggerer{})

	err := sched.RunNow("missing")
	if err == nil {
		t.Fatal("RunNow should fail for an unknown schedule")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("error = %v, want the schedule name", err)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	triggerer := &fakeTriggerer{}
	sched := newScheduler(triggerer,
		&config.ScheduleConfig{Name: "nightly", Cron: "0 2 * * *", Pipeline: "build_ios"},
		&config.ScheduleConfig{Name: "weekly", Cron: "0 9 * * 1", Lane: "beta", Timezone: "Europe/Berlin"},
	)

	if sched.IsRunning() {
		t.Error("Scheduler should not run before Start")
	}
	if err := sched.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !sched.IsRunning() {
		t.Error("Scheduler should run after Start")
	}

	// Start is idempotent.
	if err := sched.Start(); err != nil {
		t.Errorf("Second Start failed: %v", err)
	}

	if sched.NextRun("nightly").IsZero() {
		t.Error("NextRun is zero for a registered entry")
	}
	if !sched.NextRun("unknown").IsZero() {
		t.Error("NextRun should be zero for an unknown entry")
	}

	statuses := sched.Status()
	if len(statuses) != 2 {
		t.Fatalf("Status returned %d entries, want 2", len(statuses))
	}
	if statuses[0].Name != "nightly" || statuses[1].Name != "weekly" {
		t.Errorf("Status order: %+v", statuses)
	}
	for _, status := range statuses {
		if status.NextRun.IsZero() {
			t.Errorf("Entry %q has no next run", status.Name)
		}
	}

	sched.Stop()
	if sched.IsRunning() {
		t.Error("Scheduler should not run after Stop")
	}
	if !sched.NextRun("nightly").IsZero() {
		t.Error("NextRun should be zero after Stop")
	}
}

func TestSchedulerStartEmpty(t *testing.T) {
	sched := newScheduler(&fakeTriggerer{})

	if err := sched.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if sched.IsRunning() {
		t.Error("Scheduler with no entries should stay stopped")
	}
}

func TestSchedulerInvalidCron(t *testing.T) {
	sched := newScheduler(&fakeTriggerer{}, &config.ScheduleConfig{
		Name:     "broken",
		Cron:     "not a cron line",
		Pipeline: "build_ios",
	})

	err := sched.Start()
	if err == nil {
		t.Fatal("Start should fail for an invalid cron expression")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error = %v, want the schedule name", err)
	}
}

// TestCronSpecTimezone tests the CRON_TZ prefixing.
func TestCronSpecTimezone(t *testing.T) {
	sched := newScheduler(&fakeTriggerer{})

	tests := []struct {
		name  string
		entry *config.ScheduleConfig
		want  string
	}{
		{
			name:  "no timezone",
			entry: &config.ScheduleConfig{Name: "a", Cron: "0 2 * * *"},
			want:  "0 2 * * *",
		},
		{
			name:  "valid timezone",
			entry: &config.ScheduleConfig{Name: "b", Cron: "0 2 * * *", Timezone: "Europe/Berlin"},
			want:  "CRON_TZ=Europe/Berlin 0 2 * * *",
		},
		{
			name:  "invalid timezone falls back",
			entry: &config.ScheduleConfig{Name: "c", Cron: "0 2 * * *", Timezone: "Mars/Olympus"},
			want:  "0 2 * * *",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sched.cronSpec(tt.entry); got != tt.want {
				t.Errorf("cronSpec() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestCronFires tests that a registered entry actually fires through the
// cron loop.
func TestCronFires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping cron timing test in short mode")
	}

	fired := make(chan struct{}, 1)
	triggerer := &chanTriggerer{fired: fired}
	sched := newScheduler(triggerer, &config.ScheduleConfig{
		Name:     "fast",
		Cron:     "@every 1s",
		Pipeline: "build_ios",
	})

	if err := sched.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("Schedule did not fire")
	}
}

// chanTriggerer signals on a channel from the cron goroutine.
type chanTriggerer struct {
	fired chan struct{}
}

func (c *chanTriggerer) Trigger(inv *trigger.Invocation, mode trigger.Mode, req *trigger.Request, responder trigger.Responder) string {
	select {
	case c.fired <- struct{}{}:
	default:
	}
	return trigger.AckMessage
}
