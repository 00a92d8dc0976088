package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
	"github.com/uhaki/legal-retrieval/internal/infrastructure/resilience"
)

const (
	workerGroup  = "indexers"
	drainTimeout = 5 * time.Second
)

// IndexJob is the message body published for each act to index.
type IndexJob struct {
	Act        string    `json:"act"`
	RequestID  string    `json:"request_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue hands index jobs to a single worker of the "indexers" queue group.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	now      func() time.Time
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("legal-retrieval"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCollaboratorUnavailable, "connect nats", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		now:      time.Now,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishIndexAct enqueues one act. The caller's request id travels with the
// job so worker logs can be joined to the request that triggered it.
func (q *Queue) PublishIndexAct(ctx context.Context, act string) error {
	act = strings.TrimSpace(act)
	if act == "" {
		return domain.WrapError(domain.ErrInvalidInput, "nats publish", errors.New("empty act name"))
	}
	payload, err := encodeJob(IndexJob{
		Act:        act,
		RequestID:  domain.RequestIDFromContext(ctx),
		EnqueuedAt: q.now().UTC(),
	})
	if err != nil {
		return err
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return resilience.WrapTemporary("nats publish", err, classifyPublishError)
	}
	return nil
}

// SubscribeIndexAct blocks until ctx is done, then drains in-flight jobs.
func (q *Queue) SubscribeIndexAct(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}

		job, err := decodeJob(msg.Data)
		if err != nil {
			slog.Error("index_job_rejected", "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if job.RequestID != "" {
			handlerCtx = domain.WithRequestID(handlerCtx, job.RequestID)
		}
		logAttrs := []any{"act", job.Act, "request_id", job.RequestID}
		if !job.EnqueuedAt.IsZero() {
			logAttrs = append(logAttrs, "queued_ms", domain.Millis(q.now().Sub(job.EnqueuedAt)))
		}
		if err := handler(handlerCtx, job.Act); err != nil {
			slog.Error("index_job_failed", append(logAttrs, "error", err)...)
			return
		}
		slog.Info("index_job_done", logAttrs...)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(drainTimeout); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeJob(job IndexJob) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode index job: %w", err)
	}
	return data, nil
}

// decodeJob accepts the JSON envelope and, for jobs published by hand with
// `nats pub`, a bare act name.
func decodeJob(data []byte) (IndexJob, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return IndexJob{}, errors.New("empty index job")
	}
	if !strings.HasPrefix(trimmed, "{") {
		return IndexJob{Act: trimmed}, nil
	}

	var job IndexJob
	if err := json.Unmarshal([]byte(trimmed), &job); err != nil {
		return IndexJob{}, fmt.Errorf("decode index job: %w", err)
	}
	job.Act = strings.TrimSpace(job.Act)
	if job.Act == "" {
		return IndexJob{}, errors.New("index job without act")
	}
	return job, nil
}

var transientNATSErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
}

// classifyPublishError retries connection trouble. Bad subjects and oversized
// payloads are configuration errors and do not count against the breaker.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case errors.Is(err, nats.ErrBadSubject), errors.Is(err, nats.ErrMaxPayload):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	for _, transient := range transientNATSErrors {
		if errors.Is(err, transient) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
