package delivery

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/beaconhq/beacon/internal/config"
	"github.com/beaconhq/beacon/internal/event"
	"github.com/beaconhq/beacon/internal/logging"
	"github.com/beaconhq/beacon/internal/metrics"
	"github.com/beaconhq/beacon/internal/payload"
	"github.com/beaconhq/beacon/internal/queue"
	"github.com/beaconhq/beacon/internal/retry"
	"github.com/beaconhq/beacon/internal/schema"
	"github.com/beaconhq/beacon/internal/store"
	"github.com/beaconhq/beacon/internal/tracing"
	"github.com/beaconhq/beacon/internal/transport"
	"github.com/beaconhq/beacon/internal/validate"
)

// Transport performs a single delivery attempt. Satisfied by
// *transport.Client; tests substitute scripted fakes.
type Transport interface {
	Attempt(ctx context.Context, body []byte, variant transport.Variant) transport.Result
}

// Service is the pipeline's public entry point. It composes assembly,
// validation, transport, retry and the offline queue, and tracks the
// enabled gate and online state.
//
// Expected failure modes never surface as errors: outcomes are encoded in
// return values, the queue, metrics and log output.
type Service struct {
	cfg       config.Config
	logger    *logging.Logger
	transport Transport
	retrier   *retry.Scheduler
	queue     *queue.Queue
	store     store.Store // optional durable spool
	assembler payload.Assembler
	validator validate.Local

	mu      sync.Mutex
	enabled bool
	online  bool

	// validationHook observes background validation results. Test seam; nil
	// outside tests.
	validationHook func(validate.Result)
}

// Option customizes a Service at construction.
type Option func(*Service)

// WithTransport substitutes the transport client.
func WithTransport(t Transport) Option {
	return func(s *Service) { s.transport = t }
}

// WithSleep substitutes the retry delay primitive, so tests can fast-forward
// virtual time.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Service) { s.retrier.Sleep = sleep }
}

// WithQueue substitutes the delivery queue. Each service owns its queue;
// sharing one between services is a caller bug.
func WithQueue(q *queue.Queue) Option {
	return func(s *Service) { s.queue = q }
}

// WithStore attaches a durable queue spool.
func WithStore(st store.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithRegistry enables per-event-name schema checks in the local validator.
func WithRegistry(r *schema.Registry) Option {
	return func(s *Service) { s.validator.Registry = r }
}

// WithValidationHook observes background validation results.
func WithValidationHook(hook func(validate.Result)) Option {
	return func(s *Service) { s.validationHook = hook }
}

// New builds a service from configuration. The durable spool, if attached,
// is loaded into the queue before the service is returned.
func New(cfg config.Config, opts ...Option) *Service {
	asm := payload.Assembler{DefaultEngagementTimeMsec: cfg.EngagementTimeMsec}
	sched := retry.New()
	if cfg.Retry.MaxRetries > 0 {
		sched.MaxRetries = cfg.Retry.MaxRetries
	}
	if cfg.Retry.BaseDelay > 0 {
		sched.BaseDelay = cfg.Retry.BaseDelay
	}

	s := &Service{
		cfg:       cfg,
		logger:    logging.New(cfg.AppName),
		transport: transport.NewClient(cfg),
		retrier:   sched,
		queue:     queue.New(cfg.Queue.Capacity),
		assembler: asm,
		validator: validate.Local{Assembler: asm},
		enabled:   cfg.Enabled,
		online:    true,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store != nil {
		if entries, err := s.store.Load(context.Background()); err != nil {
			s.logger.Plain().WithError(err).Warn("queue spool load failed, starting empty")
		} else if len(entries) > 0 {
			s.queue.Replace(entries)
			metrics.SetQueueDepth(s.queue.Size())
			s.logger.Plain().WithField("entries", len(entries)).Info("queue spool restored")
		}
	}
	return s
}

// SetEnabled flips the delivery gate. Disabled services drop sends without
// any network activity.
func (s *Service) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	s.logger.Plain().WithField("enabled", enabled).Info("delivery gate changed")
}

// IsEnabled reports the delivery gate state.
func (s *Service) IsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// HandleConnectivityChange records the host's online state. An offline to
// online transition drains the queue through the normal retry path.
func (s *Service) HandleConnectivityChange(ctx context.Context, online bool) {
	s.mu.Lock()
	wasOnline := s.online
	s.online = online
	s.mu.Unlock()

	s.logger.Plain().WithField("online", online).Info("connectivity change")
	if online && !wasOnline {
		s.DrainQueue(ctx)
	}
}

func (s *Service) isOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Send assembles and delivers one event. It returns false without network
// activity when the service is disabled or unconfigured, enqueues and
// returns false when offline, and otherwise reports the terminal delivery
// outcome, queueing retryable failures for a later drain.
func (s *Service) Send(ctx context.Context, ev event.Event, id *event.Identity) bool {
	if !s.IsEnabled() {
		metrics.RecordDelivery("dropped")
		s.logger.Plain().WithEventName(ev.Name).Debug("send skipped: disabled")
		return false
	}
	if !s.cfg.IsConfigured() {
		metrics.RecordDelivery("dropped")
		s.logger.Plain().WithEventName(ev.Name).Debug("send skipped: collector unconfigured")
		return false
	}

	p := s.assembler.Assemble(ev, id)

	if !s.isOnline() {
		s.enqueue(ctx, p)
		s.logger.Plain().WithEventName(ev.Name).WithClientID(p.ClientID).
			WithField("queue_size", s.queue.Size()).Info("offline, event queued")
		return false
	}

	res := s.deliver(ctx, p)
	switch res.Outcome {
	case transport.OutcomeSuccess:
		metrics.RecordDelivery("delivered")
		s.logger.WithContext(ctx).WithEventName(ev.Name).WithClientID(p.ClientID).
			WithField("status", res.StatusCode).Info("event delivered")
		return true
	case transport.OutcomeClientError:
		// Retrying a malformed payload cannot succeed; terminal, not queued.
		metrics.RecordDelivery("failed")
		s.logger.WithContext(ctx).WithEventName(ev.Name).WithClientID(p.ClientID).
			WithField("status", res.StatusCode).WithError(res.Err).Error("event rejected by collector")
		return false
	default:
		metrics.RecordDelivery("queued")
		s.enqueue(ctx, p)
		s.logger.WithContext(ctx).WithEventName(ev.Name).WithClientID(p.ClientID).
			WithField("status", res.StatusCode).WithError(res.Err).
			WithField("queue_size", s.queue.Size()).Warn("retries exhausted, event queued")
		return false
	}
}

// SendWithLocalValidation validates locally first and aborts before any
// network call if a structural error is present.
func (s *Service) SendWithLocalValidation(ctx context.Context, ev event.Event, id *event.Identity) bool {
	res := s.validator.Validate(ev, id)
	if !res.Valid {
		metrics.RecordValidation("error")
		s.logger.Plain().WithEventName(ev.Name).
			WithField("errors", issueTypes(res.Errors)).Warn("send aborted by local validation")
		return false
	}
	if len(res.Warnings) > 0 {
		s.logger.Plain().WithEventName(ev.Name).
			WithField("warnings", issueTypes(res.Warnings)).Debug("local validation warnings")
	}
	return s.Send(ctx, ev, id)
}

// ValidateLocal runs the structural checks without sending.
func (s *Service) ValidateLocal(ev event.Event, id *event.Identity) validate.Result {
	return s.validator.Validate(ev, id)
}

// deliver drives the retry scheduler over production transport attempts for
// an already assembled payload.
func (s *Service) deliver(ctx context.Context, p payload.Payload) transport.Result {
	ctx, span := tracing.StartSpan(ctx, "delivery.send",
		attribute.String("client_id", p.ClientID),
	)
	defer span.End()

	body, err := p.Marshal()
	if err != nil {
		// Only reachable with a payload the caller built by hand; local
		// validation catches this before it can corrupt queue state.
		tracing.SetSpanError(ctx, err)
		s.logger.WithContext(ctx).WithError(err).Error("payload marshal failed")
		return transport.Result{Outcome: transport.OutcomeClientError, Err: err}
	}

	res := s.retrier.Run(ctx, func(ctx context.Context) transport.Result {
		return s.transport.Attempt(ctx, body, transport.Production)
	})
	span.SetAttributes(
		attribute.String("outcome", string(res.Outcome)),
		attribute.Int("http.status_code", res.StatusCode),
	)
	if res.Err != nil {
		tracing.SetSpanError(ctx, res.Err)
	}
	return res
}

func (s *Service) enqueue(ctx context.Context, p payload.Payload) {
	if s.queue.Enqueue(queue.Entry{Payload: p, EnqueuedAt: time.Now().UTC()}) {
		metrics.RecordQueueEviction()
		s.logger.Plain().Warn("queue full, oldest entry evicted")
	}
	metrics.SetQueueDepth(s.queue.Size())
	s.persist(ctx)
}

// DrainQueue attempts redelivery of every queued entry in insertion order.
// Delivered entries and terminally rejected ones are removed; entries that
// still fail with retryable outcomes stay queued. Returns how many entries
// left the queue.
func (s *Service) DrainQueue(ctx context.Context) int {
	if s.queue.Size() == 0 {
		return 0
	}
	ctx, span := tracing.StartSpan(ctx, "delivery.drain",
		attribute.Int("queue_size", s.queue.Size()),
	)
	defer span.End()

	delivered := 0
	consumed := s.queue.DrainAll(func(e queue.Entry) bool {
		res := s.deliver(ctx, e.Payload)
		switch res.Outcome {
		case transport.OutcomeSuccess:
			metrics.RecordDelivery("delivered")
			delivered++
			return true
		case transport.OutcomeClientError:
			metrics.RecordDelivery("failed")
			s.logger.WithContext(ctx).WithClientID(e.Payload.ClientID).
				WithField("status", res.StatusCode).Error("queued event rejected by collector, dropping")
			return true
		default:
			return false
		}
	})
	metrics.SetQueueDepth(s.queue.Size())
	s.persist(ctx)
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"delivered": delivered,
		"dropped":   consumed - delivered,
		"remaining": s.queue.Size(),
	}).Info("queue drain finished")
	span.SetAttributes(attribute.Int("delivered", delivered))
	return consumed
}

// QueueSize returns the number of queued events.
func (s *Service) QueueSize() int {
	return s.queue.Size()
}

// ClearQueue drops all queued events.
func (s *Service) ClearQueue(ctx context.Context) int {
	n := s.queue.Clear()
	metrics.SetQueueDepth(0)
	s.persist(ctx)
	if n > 0 {
		s.logger.Plain().WithField("dropped", n).Info("queue cleared")
	}
	return n
}

// persist saves the queue snapshot to the durable spool, best effort.
func (s *Service) persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.queue.Snapshot()); err != nil {
		s.logger.Plain().WithError(err).Warn("queue spool save failed")
	}
}

func issueTypes(issues []validate.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Type)
	}
	return out
}
