package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"swiftroute/internal/ticket"
)

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
	Close()
}

type NATSPublisher struct {
	nc          conn
	prefix      string
	logSubjects bool
	metrics     Metrics
}

type Metrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m Metrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("swiftroute"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Warn().Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info().Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info().Msg("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return newPublisher(nc, prefix, logSubjects, m), nil
}

func newPublisher(nc conn, prefix string, logSubjects bool, m Metrics) *NATSPublisher {
	if prefix == "" {
		prefix = "swiftroute"
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logSubjects: logSubjects, metrics: m}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

type PositionMessage struct {
	Bus             string    `json:"bus"`
	StopIndex       int       `json:"stopIndex"`
	NextStopIndex   int       `json:"nextStopIndex"`
	Progress        float64   `json:"progress"`
	Halted          bool      `json:"halted"`
	HaltRemainingMs int64     `json:"haltRemainingMs"`
	X               float64   `json:"x"`
	Y               float64   `json:"y"`
	Heading         float64   `json:"heading"`
	Onboard         int       `json:"onboard"`
	Timestamp       time.Time `json:"timestamp"`
}

type ManifestKind string

const (
	ManifestIssued     ManifestKind = "issued"
	ManifestRemoved    ManifestKind = "removed"
	ManifestReconciled ManifestKind = "reconciled"
)

type ManifestMessage struct {
	Bus       string        `json:"bus"`
	Kind      ManifestKind  `json:"kind"`
	Ticket    ticket.Ticket `json:"ticket"`
	StopIndex int           `json:"stopIndex"`
	Onboard   int           `json:"onboard"`
	Timestamp time.Time     `json:"timestamp"`
}

func (p *NATSPublisher) PublishPosition(msg PositionMessage) error {
	return p.publish(p.Subject(msg.Bus, "position"), msg)
}

func (p *NATSPublisher) PublishManifest(msg ManifestMessage) error {
	return p.publish(p.Subject(msg.Bus, "manifest"), msg)
}

// Subject builds "<prefix>.<bus>.<kind>" with each token sanitized.
func (p *NATSPublisher) Subject(bus, kind string) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, subjectToken(bus), kind)
}

func (p *NATSPublisher) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Debug().Str("subject", subject).Msg("nats publish")
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
