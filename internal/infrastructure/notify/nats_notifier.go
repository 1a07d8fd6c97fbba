// Package notify publishes release progress events.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes each release event as JSON on
// {prefix}.{rfq id}.{event kind}.
type NATSNotifier struct {
	pub    publisher
	conn   *nats.Conn
	prefix string
}

var _ ports.ReleaseNotifier = (*NATSNotifier)(nil)

func NewNATSNotifier(url string, subjectPrefix string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("pdmrelease"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %s", url)
	}
	n := newNATSNotifier(conn, subjectPrefix)
	n.conn = conn
	return n, nil
}

func newNATSNotifier(pub publisher, subjectPrefix string) *NATSNotifier {
	prefix := strings.Trim(strings.TrimSpace(subjectPrefix), ".")
	if prefix == "" {
		prefix = "pdm.rfq"
	}
	return &NATSNotifier{pub: pub, prefix: prefix}
}

func (n *NATSNotifier) Notify(ctx context.Context, event ports.ReleaseEvent) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "marshal release event")
	}
	subject := n.Subject(event)
	if err := n.pub.Publish(subject, data); err != nil {
		return errs.Wrapf(err, "publish %s", subject)
	}
	return nil
}

func (n *NATSNotifier) Subject(event ports.ReleaseEvent) string {
	return n.prefix + "." + subjectToken(event.RFQID) + "." + string(event.Kind)
}

// Close drains the connection so queued events are flushed.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}

// subjectToken keeps an id from splitting or wildcarding the subject.
func subjectToken(id string) string {
	token := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(strings.TrimSpace(id))
	if token == "" {
		return "_"
	}
	return token
}

// Noop drops events; used when no NATS url is configured.
type Noop struct{}

var _ ports.ReleaseNotifier = Noop{}

func (Noop) Notify(context.Context, ports.ReleaseEvent) error { return nil }
