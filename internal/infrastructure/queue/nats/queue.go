package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/eatwise/labelscan/internal/core/domain"
	"github.com/eatwise/labelscan/internal/infrastructure/resilience"
)

const defaultQueueGroup = "image-cleanup"

type Queue struct {
	conn           *nats.Conn
	subject        string
	queueGroup     string
	handlerTimeout time.Duration
	executor       *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	HandlerTimeout       time.Duration
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
	queueGroup := options.QueueGroup
	if queueGroup == "" {
		queueGroup = defaultQueueGroup
	}
	handlerTimeout := options.HandlerTimeout
	if handlerTimeout <= 0 {
		handlerTimeout = 30 * time.Second
	}

	conn, err := nats.Connect(
		url,
		nats.Name("labelscan"),
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
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		subject:        subject,
		queueGroup:     queueGroup,
		handlerTimeout: handlerTimeout,
		executor:       options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishReportDeleted(ctx context.Context, event domain.ReportDeleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal report deleted event: %w", err)
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
		return publishFailure(err)
	}
	return nil
}

// SubscribeReportDeleted blocks until ctx is done, then drains in-flight
// messages before returning.
func (q *Queue) SubscribeReportDeleted(ctx context.Context, handler func(context.Context, domain.ReportDeleted) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.queueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		q.handleMessage(ctx, msg.Data, handler)
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
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) handleMessage(ctx context.Context, data []byte, handler func(context.Context, domain.ReportDeleted) error) {
	event, err := decodeReportDeleted(data)
	if err != nil {
		slog.Error("report_deleted_decode_failed", "error", err, "bytes", len(data))
		return
	}

	handlerCtx, cancel := context.WithTimeout(ctx, q.handlerTimeout)
	defer cancel()
	if err := handler(handlerCtx, event); err != nil {
		slog.Error("report_deleted_handler_failed",
			"report_id", event.ReportID,
			"image_key", event.ImageKey,
			"error", err,
		)
	}
}

func decodeReportDeleted(data []byte) (domain.ReportDeleted, error) {
	var event domain.ReportDeleted
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.ReportDeleted{}, fmt.Errorf("unmarshal report deleted event: %w", err)
	}
	if event.ReportID == "" {
		return domain.ReportDeleted{}, fmt.Errorf("report deleted event without report id")
	}
	return event, nil
}
