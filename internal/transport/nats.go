// Package transport connects navigation engines to NATS: fixes arrive on
// <prefix>.fix.<vehicle>, snapshots leave on <prefix>.state.<vehicle>,
// route geometry on <prefix>.route.<vehicle>, and control requests are
// answered on <prefix>.control.<vehicle>.
package transport

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"route-navigator/internal/logging"
	"route-navigator/internal/nav"
	"route-navigator/internal/route"

	"github.com/nats-io/nats.go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

type Conn struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
	log         *logging.Logger
	// unproject converts route map coordinates back to longitude, latitude.
	unproject orb.Projection
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func Connect(url, prefix string, logSubjects bool, m PublisherMetrics, log *logging.Logger) (*Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("route-navigator"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &Conn{
		nc:          nc,
		prefix:      strings.TrimSuffix(prefix, "."),
		logSubjects: logSubjects,
		metrics:     m,
		log:         log,
		unproject:   project.Mercator.ToWGS84,
	}, nil
}

func (c *Conn) Close() {
	if c.nc != nil {
		c.nc.Drain()
		c.nc.Close()
	}
}

func (c *Conn) subject(kind, vehicle string) string {
	return c.prefix + "." + kind + "." + subjectToken(vehicle)
}

// PublishSnapshot sends the navigation state of a vehicle.
func (c *Conn) PublishSnapshot(vehicle string, s nav.Snapshot) error {
	return c.publish(c.subject("state", vehicle), s)
}

// PublishRoute sends the geometry of a vehicle's route as a GeoJSON
// feature collection.
func (c *Conn) PublishRoute(vehicle string, r *route.Route) error {
	return c.publish(c.subject("route", vehicle), RouteFeatures(r, c.unproject))
}

func (c *Conn) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if c.logSubjects {
		c.log.Debug("nats publish", "subject", subject, "bytes", len(b))
	}
	start := time.Now()
	err = c.nc.Publish(subject, b)
	if c.metrics != nil {
		c.metrics.PublishObserve(time.Since(start))
		if err != nil {
			c.metrics.NATSPublishErrInc()
		} else {
			c.metrics.NATSPublishedInc()
		}
	}
	return err
}

// SubscribeFixes calls handle for every fix received, with the vehicle
// named by the last subject token. Malformed messages are logged and
// dropped.
func (c *Conn) SubscribeFixes(handle func(vehicle string, f nav.Fix)) (*nats.Subscription, error) {
	return c.nc.Subscribe(c.prefix+".fix.*", func(msg *nats.Msg) {
		var m FixMessage
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			c.log.Warn("bad fix message", "subject", msg.Subject, "error", err)
			return
		}
		handle(lastToken(msg.Subject), m.Fix())
	})
}

// Controller carries out control requests for a vehicle.
type Controller interface {
	Control(ctx context.Context, vehicle string, req ControlRequest) error
}

// SubscribeControl answers control requests with a ControlReply carrying
// the numeric result code.
func (c *Conn) SubscribeControl(ctrl Controller) (*nats.Subscription, error) {
	return c.nc.Subscribe(c.prefix+".control.*", func(msg *nats.Msg) {
		vehicle := lastToken(msg.Subject)
		reply := handleControl(context.Background(), ctrl, vehicle, msg.Data)
		if reply.Code != nav.CodeSuccess {
			c.log.Warn("control request failed", "vehicle", vehicle, "code", reply.Code, "error", reply.Error)
		}
		if msg.Reply == "" {
			return
		}
		b, err := json.Marshal(reply)
		if err != nil {
			return
		}
		if err := msg.Respond(b); err != nil {
			c.log.Warn("control reply failed", "vehicle", vehicle, "error", err)
		}
	})
}

func handleControl(ctx context.Context, ctrl Controller, vehicle string, data []byte) ControlReply {
	var req ControlRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return replyFor(&invalidRequest{err})
	}
	return replyFor(ctrl.Control(ctx, vehicle, req))
}

// Router returns a Router that sends route requests to subject.
func (c *Conn) Router(subject string, timeout time.Duration) *Router {
	return &Router{nc: c.nc, subject: subject, timeout: timeout}
}

func lastToken(subject string) string {
	if i := strings.LastIndexByte(subject, '.'); i >= 0 {
		return subject[i+1:]
	}
	return subject
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
