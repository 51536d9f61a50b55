package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/hookrelay/internal/config"
	"github.com/gyaneshwarpardhi/hookrelay/internal/event"
	"github.com/gyaneshwarpardhi/hookrelay/internal/metrics"
	"github.com/gyaneshwarpardhi/hookrelay/internal/policy"
	"github.com/gyaneshwarpardhi/hookrelay/internal/whatsapp"
)

// State is the terminal state of one webhook delivery.
type State string

const (
	StateSkipped    State = "skipped"    // no message record in the delivery
	StateSuppressed State = "suppressed" // sender is inside the cooldown window
	StateDispatched State = "dispatched" // reply accepted by the provider
	StateFailed     State = "failed"     // reply attempted and failed
	StateDropped    State = "dropped"    // send queue full, reply not attempted
)

var (
	ErrQueueFull   = errors.New("send queue full")
	errSendAborted = errors.New("send aborted")
)

// Sender delivers an outbound message. *whatsapp.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, msg whatsapp.OutboundMessage) (whatsapp.SendResult, error)
}

// Result is the outcome of processing a single webhook delivery.
type Result struct {
	EventID    string `json:"event_id"`
	State      State  `json:"state"`
	Policy     string `json:"policy,omitempty"`
	From       string `json:"from,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	Ignored    int    `json:"ignored,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Err        error  `json:"-"`
}

// Relay answers inbound messages according to the active reply policy.
type Relay struct {
	policy atomic.Pointer[policyBox]
	sender Sender
	pool   *workerPool[*sendWork]
	conf   config.RelayConf
	logger *slog.Logger
}

type policyBox struct{ p policy.Policy }

type sendWork struct {
	ctx     context.Context
	msg     whatsapp.OutboundMessage
	resultC chan sendOutcome
}

type sendOutcome struct {
	res whatsapp.SendResult
	err error
}

// New creates a Relay using conf and starts the send pool. The pool stops
// when ctx is cancelled.
func New(ctx context.Context, p policy.Policy, sender Sender, conf config.RelayConf, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{
		sender: sender,
		conf:   conf,
		logger: logger,
	}
	r.policy.Store(&policyBox{p: p})
	r.pool = newWorkerPool[*sendWork](ctx, max(conf.SendWorkers, 1), max(conf.QueueDepth, 1), r.runSend)
	return r
}

// SwapPolicy atomically replaces the reply policy (used on hot-reload).
func (r *Relay) SwapPolicy(p policy.Policy) {
	r.policy.Store(&policyBox{p: p})
}

// Policy returns the active reply policy.
func (r *Relay) Policy() policy.Policy {
	return r.policy.Load().p
}

// QueueUtilization returns queue used / capacity (0–1).
func (r *Relay) QueueUtilization() float64 {
	if r.pool.QueueCap() == 0 {
		return 0
	}
	return float64(r.pool.QueueLen()) / float64(r.pool.QueueCap())
}

// Shutdown drains the send pool.
func (r *Relay) Shutdown() {
	r.pool.Drain()
}

// Process runs one delivery through extract → cooldown check → send.
// Only the first message record is answered; later ones are logged and counted.
func (r *Relay) Process(ctx context.Context, env *event.Envelope) *Result {
	start := time.Now()
	res := &Result{EventID: uuid.New().String()}
	defer func() {
		res.DurationMs = time.Since(start).Milliseconds()
		metrics.WebhookDeliveries.WithLabelValues(string(res.State)).Inc()
	}()
	log := r.logger.With("event_id", res.EventID)

	events := event.Extract(env)
	if len(events) == 0 {
		res.State = StateSkipped
		log.Debug("delivery absorbed without message", "statuses", event.HasStatuses(env))
		return res
	}

	ev := events[0]
	ev.ID = res.EventID
	ev.ReceivedAt = start
	res.From = ev.From
	if extra := events[1:]; len(extra) > 0 {
		res.Ignored = len(extra)
		metrics.MessagesIgnored.Add(float64(len(extra)))
		for _, x := range extra {
			log.Info("ignoring additional message in delivery", "from", x.From, "type", x.Type, "wamid", x.MessageID)
		}
	}
	log.Info("incoming message", "from", ev.From, "type", ev.Type, "wamid", ev.MessageID)

	p := r.Policy()
	res.Policy = p.Name()
	gate := p.Gate()
	if gate != nil && !gate.Acquire(ev.From) {
		res.State = StateSuppressed
		log.Info("reply already sent within cooldown, skipping", "from", ev.From, "policy", p.Name())
		return res
	}

	out, err := r.send(ctx, p.Build(ev))
	if err != nil {
		// A timed-out send may still have been delivered, so its stamp stays.
		if gate != nil && !outcomeUnknown(err) {
			gate.Revert(ev.From)
		}
		res.Err = err
		res.State = StateFailed
		if errors.Is(err, ErrQueueFull) {
			res.State = StateDropped
			metrics.SendsDropped.Inc()
		}
		metrics.RepliesSent.WithLabelValues(p.Name(), "error").Inc()
		log.Error("reply failed", append([]any{"to", ev.From, "policy", p.Name()}, errorAttrs(err)...)...)
		return res
	}

	res.State = StateDispatched
	res.MessageID = out.MessageID
	metrics.RepliesSent.WithLabelValues(p.Name(), "success").Inc()
	log.Info("reply sent", "to", ev.From, "policy", p.Name(), "message_id", out.MessageID)
	return res
}

// send hands msg to the pool and waits for the outcome or the send timeout.
func (r *Relay) send(ctx context.Context, msg whatsapp.OutboundMessage) (whatsapp.SendResult, error) {
	timeout := time.Duration(r.conf.SendTimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = whatsapp.DefaultTimeout
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	w := &sendWork{ctx: sendCtx, msg: msg, resultC: make(chan sendOutcome, 1)}
	if !r.pool.Submit(w) {
		return whatsapp.SendResult{}, fmt.Errorf("%w (capacity %d)", ErrQueueFull, r.pool.QueueCap())
	}
	metrics.QueueUtilization.Set(r.QueueUtilization())

	select {
	case o := <-w.resultC:
		return o.res, o.err
	case <-sendCtx.Done():
		return whatsapp.SendResult{}, fmt.Errorf("reply not completed: %w", sendCtx.Err())
	}
}

func (r *Relay) runSend(_ context.Context, w *sendWork) {
	out := sendOutcome{err: errSendAborted}
	start := time.Now()
	defer func() {
		metrics.SendDuration.Observe(float64(time.Since(start).Milliseconds()))
		w.resultC <- out
	}()
	if err := w.ctx.Err(); err != nil {
		out.err = err
		return
	}
	out.res, out.err = r.sender.Send(w.ctx, w.msg)
}

// outcomeUnknown reports whether err leaves it open whether the provider
// accepted the message.
func outcomeUnknown(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// errorAttrs flattens whatever diagnostic detail the failure carries.
func errorAttrs(err error) []any {
	attrs := []any{"err", err}
	var apiErr *whatsapp.APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs,
			"status", apiErr.StatusCode,
			"code", apiErr.Code,
			"type", apiErr.Type,
			"fbtrace_id", apiErr.TraceID,
		)
	}
	return attrs
}
