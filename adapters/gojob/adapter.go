package gojob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-social-links/core"
)

const (
	JobIDRefreshAllTokens = "sociallinks.refresh_all_tokens"

	ParamHoursBeforeExpiry = "hours_before_expiry"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts core.JobNackOptions, attempt int) core.JobNackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// NewRefreshAllTokensMessage builds the queue message for one batch refresh.
// A zero horizon defers to the scheduler's configured window.
func NewRefreshAllTokensMessage(hoursBeforeExpiry int, idempotencyKey string) *core.JobExecutionMessage {
	params := map[string]any{}
	if hoursBeforeExpiry > 0 {
		params[ParamHoursBeforeExpiry] = hoursBeforeExpiry
	}
	return &core.JobExecutionMessage{
		JobID:          JobIDRefreshAllTokens,
		ScriptPath:     JobIDRefreshAllTokens,
		Parameters:     params,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		DedupPolicy:    "drop",
	}
}

func ToExecutionMessage(msg *core.JobExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	return &job.ExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy(strings.TrimSpace(msg.DedupPolicy)),
	}
}

func FromExecutionMessage(msg *job.ExecutionMessage) *core.JobExecutionMessage {
	if msg == nil {
		return nil
	}
	return &core.JobExecutionMessage{
		JobID:          strings.TrimSpace(msg.JobID),
		ScriptPath:     strings.TrimSpace(msg.ScriptPath),
		Parameters:     copyAnyMap(msg.Parameters),
		IdempotencyKey: strings.TrimSpace(msg.IdempotencyKey),
		DedupPolicy:    strings.TrimSpace(string(msg.DedupPolicy)),
	}
}

func ToNackOptions(opts core.JobNackOptions) queue.NackOptions {
	return queue.NackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

func FromNackOptions(opts queue.NackOptions) core.JobNackOptions {
	return core.JobNackOptions{
		Delay:      opts.Delay,
		Requeue:    opts.Requeue,
		DeadLetter: opts.DeadLetter,
		Reason:     opts.Reason,
	}
}

type EnqueuerAdapter struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuerAdapter(enqueuer queue.Enqueuer) *EnqueuerAdapter {
	return &EnqueuerAdapter{enqueuer: enqueuer}
}

func (a *EnqueuerAdapter) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(msg))
}

type DeliveryAdapter struct {
	delivery queue.Delivery
	policy   RetryPolicy
}

func NewDeliveryAdapter(delivery queue.Delivery, policy RetryPolicy) *DeliveryAdapter {
	return &DeliveryAdapter{delivery: delivery, policy: policy}
}

func (d *DeliveryAdapter) Message() *core.JobExecutionMessage {
	if d == nil || d.delivery == nil {
		return nil
	}
	return FromExecutionMessage(d.delivery.Message())
}

func (d *DeliveryAdapter) Ack(ctx context.Context) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	return d.delivery.Ack(ctx)
}

func (d *DeliveryAdapter) Nack(ctx context.Context, opts core.JobNackOptions) error {
	return d.NackForAttempt(ctx, opts, 0)
}

func (d *DeliveryAdapter) NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error {
	if d == nil || d.delivery == nil {
		return fmt.Errorf("gojob: delivery is not configured")
	}
	normalized := d.policy.NormalizeAttempt(opts, attempt)
	return d.delivery.Nack(ctx, ToNackOptions(normalized))
}

type DequeuerAdapter struct {
	dequeuer queue.Dequeuer
	policy   RetryPolicy
}

func NewDequeuerAdapter(dequeuer queue.Dequeuer, policy RetryPolicy) *DequeuerAdapter {
	return &DequeuerAdapter{dequeuer: dequeuer, policy: policy}
}

func (a *DequeuerAdapter) Dequeue(ctx context.Context) (core.JobDelivery, error) {
	if a == nil || a.dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := a.dequeuer.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliveryAdapter(delivery, a.policy), nil
}

// TokenRefresher is satisfied by core.RefreshScheduler.
type TokenRefresher interface {
	RefreshAllTokens(ctx context.Context, req core.RefreshAllRequest) (core.RefreshStats, error)
}

// RefreshJobHandler runs batch token refreshes pulled off a queue. App
// credentials come from configuration and never travel in job parameters.
type RefreshJobHandler struct {
	refresher  TokenRefresher
	app        core.AppCredentials
	retryDelay time.Duration
	logger     core.Logger
}

func NewRefreshJobHandler(refresher TokenRefresher, app core.AppCredentials, retryDelay time.Duration, logger core.Logger) *RefreshJobHandler {
	if logger == nil {
		logger = glog.Nop()
	}
	if retryDelay < 0 {
		retryDelay = 0
	}
	return &RefreshJobHandler{
		refresher:  refresher,
		app:        app,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Handle executes one delivery and settles it. Partial batch failures are
// reported in the stats and still ack; only a run-level error nacks.
func (h *RefreshJobHandler) Handle(ctx context.Context, delivery core.JobDelivery) (core.RefreshStats, error) {
	if h == nil || h.refresher == nil {
		return core.RefreshStats{}, fmt.Errorf("gojob: token refresher is not configured")
	}
	if delivery == nil {
		return core.RefreshStats{}, fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	if msg == nil || msg.JobID != JobIDRefreshAllTokens {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		nackErr := delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: "unknown job " + jobID})
		if nackErr != nil {
			return core.RefreshStats{}, nackErr
		}
		return core.RefreshStats{}, fmt.Errorf("gojob: unexpected job %q", jobID)
	}

	hours, err := intParam(msg.Parameters, ParamHoursBeforeExpiry)
	if err != nil {
		if nackErr := delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: err.Error()}); nackErr != nil {
			return core.RefreshStats{}, nackErr
		}
		return core.RefreshStats{}, err
	}

	stats, err := h.refresher.RefreshAllTokens(ctx, core.RefreshAllRequest{
		ClientID:          h.app.ClientID,
		ClientSecret:      h.app.ClientSecret,
		HoursBeforeExpiry: hours,
	})
	logger := h.logger.WithContext(ctx)
	if err != nil {
		logger.Error("token refresh job failed", "job_id", msg.JobID, "error", err)
		if nackErr := delivery.Nack(ctx, core.JobNackOptions{
			Delay:   h.retryDelay,
			Requeue: true,
			Reason:  err.Error(),
		}); nackErr != nil {
			return stats, nackErr
		}
		return stats, err
	}
	logger.Info("token refresh job completed",
		"job_id", msg.JobID,
		"success", stats.Success,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
	)
	return stats, delivery.Ack(ctx)
}

// RunOnce pulls a single delivery and handles it.
func (h *RefreshJobHandler) RunOnce(ctx context.Context, dequeuer core.JobDequeuer) (core.RefreshStats, error) {
	if dequeuer == nil {
		return core.RefreshStats{}, fmt.Errorf("gojob: dequeuer is required")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return core.RefreshStats{}, err
	}
	return h.Handle(ctx, delivery)
}

// LoggingHook reports go-job worker lifecycle events through a glog logger.
type LoggingHook struct {
	logger core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	if logger == nil {
		logger = glog.Nop()
	}
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.logger.WithContext(ctx).Debug("job started", eventFields(event)...)
}

func (h *LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.logger.WithContext(ctx).Info("job succeeded", eventFields(event)...)
}

func (h *LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.logger.WithContext(ctx).Error("job failed", eventFields(event)...)
}

func (h *LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.logger.WithContext(ctx).Warn("job retry scheduled", eventFields(event)...)
}

func eventFields(event worker.Event) []any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	jobID := ""
	if message != nil {
		jobID = message.JobID
	}
	fields := []any{
		"job_id", jobID,
		"attempt", event.Attempt,
	}
	if event.Delay > 0 {
		fields = append(fields, "delay", event.Delay)
	}
	if event.Duration > 0 {
		fields = append(fields, "duration", event.Duration)
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err)
	}
	return fields
}

func intParam(params map[string]any, key string) (int, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, nil
	}
	var value int
	switch typed := raw.(type) {
	case int:
		value = typed
	case int64:
		value = int(typed)
	case float64:
		value = int(typed)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0, fmt.Errorf("gojob: %s must be an integer", key)
		}
		value = parsed
	default:
		return 0, fmt.Errorf("gojob: %s has unsupported type %T", key, raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("gojob: %s must not be negative", key)
	}
	return value, nil
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.JobEnqueuer = (*EnqueuerAdapter)(nil)
	_ core.JobDelivery = (*DeliveryAdapter)(nil)
	_ core.JobDequeuer = (*DequeuerAdapter)(nil)
	_ worker.Hook      = (*LoggingHook)(nil)
	_ TokenRefresher   = (*core.RefreshScheduler)(nil)
)
