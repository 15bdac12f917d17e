package service

import (
	"context"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
	"github.com/boddenberg/occurrence-console/internal/infra/observability"
	"github.com/boddenberg/occurrence-console/internal/infra/resilience"
	"github.com/boddenberg/occurrence-console/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var consoleTracer = otel.Tracer("service/console")

// Options configures a Console.
type Options struct {
	Backend        string
	Collections    domain.Collections
	PageSize       int
	MaxConcurrency int
	RelayFunction  string
	LookupTimeout  time.Duration
}

// Console wires the session, subscriptions, view state and writers for one
// operator.
type Console struct {
	backend     string
	collections domain.Collections
	pageSize    int
	auth        port.AuthProvider
	metrics     *observability.Metrics
	logger      *zap.Logger

	View          *ViewState
	Session       *SessionResolver
	Subscriptions *Subscriptions
	Orchestrator  *Orchestrator
	Filters       *FilterState
	Relay         *Relay
}

// NewConsole builds a console over the three collaborators.
func NewConsole(auth port.AuthProvider, store port.DocumentStore, functions port.FunctionInvoker, opts Options, metrics *observability.Metrics, logger *zap.Logger) *Console {
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	view := NewViewState()
	session := NewSessionResolver(auth, store, opts.Collections.Users, opts.LookupTimeout, logger.Named("session"))

	return &Console{
		backend:     opts.Backend,
		collections: opts.Collections,
		pageSize:    opts.PageSize,
		auth:        auth,
		metrics:     metrics,
		logger:      logger,

		View:          view,
		Session:       session,
		Subscriptions: NewSubscriptions(store, view, opts.Collections, metrics, logger.Named("subscriptions")),
		Orchestrator:  NewOrchestrator(store, view, session, opts.Collections, resilience.NewBulkhead(opts.MaxConcurrency), metrics, logger.Named("orchestrator")),
		Filters:       NewFilterState(opts.PageSize),
		Relay:         NewRelay(functions, opts.RelayFunction, metrics, logger.Named("relay")),
	}
}

// Start follows the session and opens the subscriptions. The subscriptions
// do not wait for a signed-in profile.
func (c *Console) Start(ctx context.Context) error {
	c.Session.Start()
	if err := c.Subscriptions.Start(ctx); err != nil {
		c.Session.Stop()
		return err
	}
	return nil
}

// Close tears everything down.
func (c *Console) Close() {
	c.Subscriptions.Stop()
	c.Session.Stop()
}

// SignIn authenticates and waits for the profile lookup. An identity without
// a profile is not an error: the view stays on sign-in.
func (c *Console) SignIn(ctx context.Context, email, password string) (domain.SessionView, error) {
	ctx, span := consoleTracer.Start(ctx, "Console.SignIn")
	defer span.End()

	start := time.Now()
	defer func() { c.metrics.RecordDuration("sign_in", time.Since(start)) }()

	if err := c.auth.SignIn(ctx, email, password); err != nil {
		return domain.SessionView{View: "sign-in"}, err
	}
	if _, err := c.Session.Await(ctx); err != nil {
		return domain.SessionView{View: "sign-in"}, err
	}
	return c.Session.View(), nil
}

// SignOut ends the session. The profile is cleared by the session stream.
func (c *Console) SignOut(ctx context.Context) error {
	ctx, span := consoleTracer.Start(ctx, "Console.SignOut")
	defer span.End()
	return c.auth.SignOut(ctx)
}

// SendPasswordReset asks the auth service to email a reset link.
func (c *Console) SendPasswordReset(ctx context.Context, email string) error {
	ctx, span := consoleTracer.Start(ctx, "Console.SendPasswordReset")
	defer span.End()
	return c.auth.SendPasswordReset(ctx, email)
}

// Occurrences filters the pushed occurrences without touching FilterState.
func (c *Console) Occurrences(criteria Criteria, page int) Page {
	return Filter(c.View.Occurrences(), criteria, page, c.pageSize)
}

// CurrentPage applies the stateful filter.
func (c *Console) CurrentPage() Page {
	return c.Filters.Apply(c.View.Occurrences())
}

// ExportRows is every occurrence matching criteria, unpaginated.
func (c *Console) ExportRows(criteria Criteria) []domain.Occurrence {
	return Select(c.View.Occurrences(), criteria)
}

// WaitLoaded blocks until each slice has received its first push.
func (c *Console) WaitLoaded(ctx context.Context, slices ...Slice) error {
	for _, s := range slices {
		select {
		case <-c.View.Loaded(s):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Status reports backend, slice load state and counters.
func (c *Console) Status() domain.ConsoleStatus {
	return domain.ConsoleStatus{
		Backend:       c.backend,
		Collections:   c.View.Status(),
		Authenticated: c.Session.Profile() != nil,
		Counters:      c.metrics.Counters(c.collections.Occurrences, c.collections.Users, c.collections.Lists),
	}
}
