package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alekspetrov/shipbot/internal/history"
	"github.com/alekspetrov/shipbot/internal/logging"
)

// AckMessage is the fixed acknowledgment returned to the platform before
// any provider work has started. It must fit inside the platform's short
// ack window, so nothing network-bound runs before it.
const AckMessage = "🚀 On it! I'll post the build link here once the run is created."

// Provider issues the CI trigger calls. Implemented by the CircleCI
// adapter; tests substitute fakes.
type Provider interface {
	// TriggerJob fires the legacy single-request job trigger.
	TriggerJob(ctx context.Context, req *Request) (*Result, error)
	// TriggerPipeline fires the pipeline create-then-poll sequence.
	TriggerPipeline(ctx context.Context, req *Request) (*Result, error)
}

// Responder delivers the deferred reply for one invocation. The concrete
// type knows where the invocation's callback address points. Delivery is
// best-effort: a failure is logged, never retried.
type Responder interface {
	Respond(ctx context.Context, inv *Invocation, text string) error
}

// Service runs trigger chains. Each invocation is processed independently:
// the synchronous caller gets the acknowledgment, and the provider call
// plus deferred reply run on the invocation's own goroutine. There is no
// shared mutable state across invocations.
type Service struct {
	provider Provider
	journal  *history.Store // nil disables journaling
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewService creates a trigger service. journal may be nil.
func NewService(provider Provider, journal *history.Store) *Service {
	return &Service{
		provider: provider,
		journal:  journal,
		logger:   logging.WithComponent("trigger"),
	}
}

// Trigger starts the asynchronous trigger chain for a built request and
// returns the fixed acknowledgment for the synchronous reply. The chain
// fires the provider call, formats the outcome, and delivers it through the
// responder to the invocation's callback address. A provider failure ends
// the chain with a failure reply; it is never re-raised to the caller who
// already received the acknowledgment.
func (s *Service) Trigger(inv *Invocation, mode Mode, req *Request, responder Responder) string {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// The chain outlives the inbound HTTP request, so it carries its
		// own context rather than the handler's.
		ctx := logging.ContextWithInvocationID(context.Background(), inv.ID)
		ctx = logging.ContextWithSource(ctx, inv.Source)

		res, err := s.Execute(ctx, inv, mode, req)

		var text string
		if err != nil {
			s.logger.Error("trigger chain failed",
				slog.String("invocation_id", inv.ID),
				slog.String("command", inv.Command),
				slog.String("branch", req.Branch),
				slog.Any("error", err))
			text = FailureMessage(inv, err)
		} else {
			text = SuccessMessage(res)
		}

		if responder == nil {
			return
		}
		if err := responder.Respond(ctx, inv, text); err != nil {
			s.logger.Error("deferred reply delivery failed",
				slog.String("invocation_id", inv.ID),
				slog.Any("error", err))
		}
	}()

	return AckMessage
}

// Execute runs the provider call for a built request and journals the
// outcome. Lane-mode requests go through the legacy job API, pipeline-mode
// requests through the pipeline create-then-poll sequence. Callers that
// want the deferred-reply protocol use Trigger instead.
func (s *Service) Execute(ctx context.Context, inv *Invocation, mode Mode, req *Request) (*Result, error) {
	s.journalStart(inv, mode, req)

	s.logger.Info("triggering build",
		slog.String("invocation_id", inv.ID),
		slog.String("command", inv.Command),
		slog.String("mode", string(mode)),
		slog.String("project", req.Project),
		slog.String("branch", req.Branch))

	var res *Result
	var err error
	switch mode {
	case ModeLane:
		res, err = s.provider.TriggerJob(ctx, req)
	default:
		res, err = s.provider.TriggerPipeline(ctx, req)
	}
	if err != nil {
		s.journalFailed(inv.ID, err)
		return nil, err
	}

	if res.Branch == "" {
		res.Branch = req.Branch
	}
	s.journalTriggered(inv.ID, res)

	s.logger.Info("build triggered",
		slog.String("invocation_id", inv.ID),
		slog.String("branch", res.Branch),
		slog.String("build_url", res.BuildURL))

	return res, nil
}

// Wait blocks until all in-flight trigger chains have finished. Used
// during shutdown so deferred replies are not cut off mid-delivery.
func (s *Service) Wait() {
	s.wg.Wait()
}

// SuccessMessage is the deferred reply for a resolved trigger. It embeds
// the branch the provider reported and the build link.
func SuccessMessage(res *Result) string {
	return fmt.Sprintf("✅ Build triggered on `%s`\n%s", res.Branch, res.BuildURL)
}

// FailureMessage is the deferred reply when the provider call chain fails,
// so the requester is not left staring at the acknowledgment forever.
func FailureMessage(inv *Invocation, err error) string {
	return fmt.Sprintf("❌ `%s` could not be triggered: %v", inv.Command, err)
}

// Journal writes are best-effort: a journal error is logged and the
// trigger chain continues.

func (s *Service) journalStart(inv *Invocation, mode Mode, req *Request) {
	if s.journal == nil {
		return
	}
	params, err := json.Marshal(req.Parameters)
	if err != nil {
		params = []byte("{}")
	}
	rec := &history.Record{
		ID:          inv.ID,
		Source:      inv.Source,
		Command:     inv.Command,
		Mode:        string(mode),
		Project:     req.Project,
		Branch:      req.Branch,
		Parameters:  string(params),
		Status:      history.StatusPending,
		RequestedBy: inv.User,
		Channel:     inv.Channel,
	}
	if err := s.journal.Save(rec); err != nil {
		s.logger.Warn("failed to journal trigger start",
			slog.String("invocation_id", inv.ID),
			slog.Any("error", err))
	}
}

func (s *Service) journalTriggered(id string, res *Result) {
	if s.journal == nil {
		return
	}
	if err := s.journal.MarkTriggered(id, res.Branch, res.BuildURL); err != nil {
		s.logger.Warn("failed to journal trigger result",
			slog.String("invocation_id", id),
			slog.Any("error", err))
	}
}

func (s *Service) journalFailed(id string, cause error) {
	if s.journal == nil {
		return
	}
	if err := s.journal.MarkFailed(id, cause.Error()); err != nil {
		s.logger.Warn("failed to journal trigger failure",
			slog.String("invocation_id", id),
			slog.Any("error", err))
	}
}
