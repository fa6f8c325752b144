package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/infrastructure/resilience"
)

const publishOperation = "nats.publish_request"

// requestMessage is the wire body of a queued request.
type requestMessage struct {
	RequestID   string    `json:"request_id"`
	PublishedAt time.Time `json:"published_at"`
}

// publishRule maps a family of NATS errors to retry behaviour and to the
// domain kind reported to whoever submitted the request.
type publishRule struct {
	errs  []error
	class resilience.ErrorClassification
	kind  error
}

var publishRules = []publishRule{
	{
		// The request record is valid but the envelope cannot travel;
		// retrying or tripping the breaker will not help.
		errs:  []error{nats.ErrMaxPayload, nats.ErrBadSubject, nats.ErrInvalidMsg},
		class: resilience.ErrorClassification{},
		kind:  domain.ErrInvalidInput,
	},
	{
		errs: []error{
			nats.ErrNoServers,
			nats.ErrTimeout,
			nats.ErrConnectionClosed,
			nats.ErrConnectionReconnecting,
			nats.ErrConnectionDraining,
			nats.ErrDisconnected,
		},
		class: resilience.ErrorClassification{Retryable: true, RecordFailure: true},
		kind:  domain.ErrTemporary,
	},
}

// publish sends the request envelope, retrying connection trouble through
// the executor when one is configured.
func (q *Queue) publish(ctx context.Context, requestID string, body []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, body); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, publishOperation, call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return publishError(requestID, err)
}

func classifyPublishError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if rule, ok := matchPublishRule(err); ok {
		return rule.class
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// publishError tags a failed publish with the request id and a domain kind
// so Submit can mark the request FAILED with a meaningful status.
func publishError(requestID string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrInvalidInput) {
		return err
	}
	op := "publish request " + requestID
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	if rule, ok := matchPublishRule(err); ok {
		return domain.WrapError(rule.kind, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func matchPublishRule(err error) (publishRule, bool) {
	for _, rule := range publishRules {
		for _, target := range rule.errs {
			if errors.Is(err, target) {
				return rule, true
			}
		}
	}
	return publishRule{}, false
}

func encodeMessage(requestID string) ([]byte, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "publish request", fmt.Errorf("request id is required"))
	}
	body, err := json.Marshal(requestMessage{RequestID: requestID, PublishedAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("marshal queue message: %w", err)
	}
	return body, nil
}

// decodeMessage also accepts a bare id so messages published by hand with
// `nats pub` are processed.
func decodeMessage(data []byte) (string, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return "", fmt.Errorf("empty message")
	}
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}
	var msg requestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("decode queue message: %w", err)
	}
	if strings.TrimSpace(msg.RequestID) == "" {
		return "", fmt.Errorf("queue message has no request id")
	}
	return msg.RequestID, nil
}
