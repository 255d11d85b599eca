// Package controller runs the control loop: acquire a count, classify it,
// record transitions, render the decision, repeat until the stream ends or
// the context is cancelled.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/sweeney/crowd-signal/internal/auditlog"
	"github.com/sweeney/crowd-signal/internal/logic"
	"github.com/sweeney/crowd-signal/internal/metrics"
	"github.com/sweeney/crowd-signal/internal/mqtt"
	"github.com/sweeney/crowd-signal/internal/render"
	"github.com/sweeney/crowd-signal/internal/source"
	"github.com/sweeney/crowd-signal/internal/status"
	"github.com/sweeney/crowd-signal/internal/transition"
)

// Logf is the controller's logger. Tests replace it to capture output.
var Logf = log.Printf

// State is the loop lifecycle state.
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
	StateStopped State = "STOPPED"
)

// Reason explains why the loop stopped.
type Reason string

const (
	ReasonEndOfStream Reason = "END_OF_STREAM"
	ReasonCancelled   Reason = "CANCELLED"
	ReasonError       Reason = "ERROR"
)

// Config wires the controller to its collaborators. Source, Renderer, and
// Store are required; the rest are optional.
type Config struct {
	Thresholds logic.Thresholds
	Source     source.Source
	Renderer   render.Renderer
	Store      auditlog.Store

	Publisher  mqtt.Publisher
	MQTTStatus mqtt.ConnectionStatus
	Tracker    *status.Tracker
	Metrics    *metrics.Metrics

	// Now defaults to time.Now.
	Now   func() time.Time
	RunID string
	// Heartbeat is the HEARTBEAT event interval; 0 disables it.
	Heartbeat time.Duration
	// Summary receives the performance summary when the loop stops.
	Summary io.Writer
}

// Controller owns one run of the control loop.
type Controller struct {
	cfg       Config
	logger    *transition.Logger
	heartbeat *logic.Heartbeat

	mu    sync.Mutex
	state State

	closeOnce sync.Once
	closeErr  error
}

// New validates cfg and returns an idle controller. It takes ownership of
// the collaborators: Close (or Run) releases them.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if cfg.Source == nil {
		return nil, errors.New("controller: source is required")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("controller: renderer is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("controller: store is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Controller{
		cfg:    cfg,
		logger: transition.NewLogger(cfg.Store, cfg.Now),
		state:  StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.cfg.Tracker != nil {
		c.cfg.Tracker.SetRunning(s == StateRunning)
	}
}

// Run executes the loop until the source ends, ctx is cancelled, or a fatal
// error occurs. Cancellation is checked at cycle boundaries and also
// interrupts a blocked acquisition. End of stream and cancellation return a
// nil error. Every collaborator is closed before Run returns.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return Summary{}, errors.New("controller: already run")
	}
	c.mu.Unlock()
	defer c.Close()

	start := c.cfg.Now()
	c.heartbeat = logic.NewHeartbeat(start)
	c.setState(StateRunning)
	c.publishSystem("STARTUP", "", true)
	Logf("running: run_id=%s thresholds=%d/%d green=%ds +%d/-%d",
		c.cfg.RunID, c.cfg.Thresholds.Low, c.cfg.Thresholds.High,
		c.cfg.Thresholds.BaseDuration, c.cfg.Thresholds.Increment, c.cfg.Thresholds.Decrement)

	var sum Summary
	reason, err := c.loop(ctx, &sum)
	sum.Reason = reason
	sum.Elapsed = c.cfg.Now().Sub(start)

	c.setState(StateStopped)
	c.publishSystem("SHUTDOWN", string(reason), true)
	if c.cfg.Summary != nil {
		sum.Report(c.cfg.Summary)
	}
	Logf("stopped: reason=%s cycles=%d transitions=%d log_failures=%d elapsed=%v",
		reason, sum.Cycles, sum.Transitions, sum.LogFailures, sum.Elapsed.Truncate(time.Millisecond))

	return sum, err
}

func (c *Controller) loop(ctx context.Context, sum *Summary) (Reason, error) {
	for {
		if ctx.Err() != nil {
			return ReasonCancelled, nil
		}

		obs, err := c.cfg.Source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, source.ErrEndOfStream):
				return ReasonEndOfStream, nil
			case ctx.Err() != nil && errors.Is(err, ctx.Err()):
				return ReasonCancelled, nil
			default:
				return ReasonError, fmt.Errorf("cycle %d: %w", sum.Cycles+1, err)
			}
		}

		if err := c.cycle(obs, sum); err != nil {
			return ReasonError, fmt.Errorf("cycle %d: %w", sum.Cycles+1, err)
		}
		sum.Cycles++
		c.afterCycle(obs)
	}
}

// cycle classifies one observation, records a transition if the status
// changed, and renders the decision. A log append failure is reported and
// counted but does not stop the loop.
func (c *Controller) cycle(obs logic.Observation, sum *Summary) error {
	d, err := logic.Classify(obs.Count, c.cfg.Thresholds)
	if err != nil {
		return err
	}

	entry, err := c.logger.Record(obs, d)
	if entry != nil && c.cfg.Publisher != nil {
		if perr := c.cfg.Publisher.PublishTransition(*entry); perr != nil {
			Logf("publish error: %v", perr)
		}
	}

	// A mirror failure still leaves the row in the primary log.
	var appendErr *transition.AppendError
	var mirrorErr *auditlog.MirrorError
	persisted := entry != nil && (err == nil || errors.As(err, &mirrorErr))
	switch {
	case errors.As(err, &appendErr):
		sum.LogFailures++
		Logf("warning: %v", err)
		c.cfg.Metrics.ObserveLogFailure()
		if c.cfg.Tracker != nil {
			c.cfg.Tracker.RecordLogFailure()
		}
	case err != nil:
		return err
	}
	if persisted {
		Logf("LOGGED: Status switched from '%s' to '%s' (Count: %d)", entry.From.Label(), entry.To.Label(), entry.Count)
		sum.Transitions++
		c.cfg.Metrics.ObserveTransition(entry.From, entry.To)
		if c.cfg.Tracker != nil {
			c.cfg.Tracker.RecordTransition()
		}
	}

	if err := c.cfg.Renderer.Render(obs, d); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	c.cfg.Metrics.ObserveCycle(obs, d)
	if c.cfg.Tracker != nil {
		c.cfg.Tracker.Update(obs, d, c.logger.State().LastLogged)
	}
	return nil
}

func (c *Controller) afterCycle(obs logic.Observation) {
	c.refreshConnection()
	if c.heartbeat.Due(c.cfg.Now(), c.cfg.Heartbeat) {
		Logf("heartbeat: count=%d last_logged=%s", obs.Count, c.logger.State().LastLogged)
		c.publishSystem("HEARTBEAT", "", false)
	}
}

func (c *Controller) refreshConnection() {
	if c.cfg.Tracker != nil && c.cfg.MQTTStatus != nil {
		c.cfg.Tracker.SetMQTTConnected(c.cfg.MQTTStatus.IsConnected())
	}
}

func (c *Controller) publishSystem(event, reason string, retained bool) {
	if c.cfg.Publisher == nil {
		return
	}
	e := mqtt.SystemEvent{
		Timestamp: c.cfg.Now(),
		Event:     event,
		Reason:    reason,
		RunID:     c.cfg.RunID,
		Retained:  retained,
	}
	if c.cfg.Tracker != nil {
		c.refreshConnection()
		e.RawPayload = status.FormatStatusEvent(c.cfg.Tracker.Snapshot(), event, reason)
	}
	if err := c.cfg.Publisher.PublishSystem(e); err != nil {
		Logf("failed to publish %s event: %v", event, err)
	}
}

// Close releases the source, renderer, store, and publisher. It runs once;
// later calls return the first result.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		closeOne := func(name string, cl io.Closer) {
			if err := cl.Close(); err != nil {
				Logf("close %s: %v", name, err)
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
		closeOne("source", c.cfg.Source)
		closeOne("renderer", c.cfg.Renderer)
		closeOne("store", c.cfg.Store)
		if c.cfg.Publisher != nil {
			closeOne("publisher", c.cfg.Publisher)
		}
		c.closeErr = errors.Join(errs...)

		c.mu.Lock()
		c.state = StateStopped
		c.mu.Unlock()
	})
	return c.closeErr
}
