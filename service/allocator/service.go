package allocator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/viant/fleetsched/internal/logging"
	"github.com/viant/fleetsched/metrics"
	"github.com/viant/fleetsched/model"
	"github.com/viant/fleetsched/model/resource"
	"github.com/viant/fleetsched/progress"
	"github.com/viant/fleetsched/service/event"
	"github.com/viant/fleetsched/service/messaging"
	"github.com/viant/fleetsched/service/messaging/priority"
	"github.com/viant/fleetsched/service/module"
	"github.com/viant/fleetsched/service/reservation"
	"github.com/viant/fleetsched/tracing"
)

// ErrRejected is recorded on the command span when a client declines a
// grant.
var ErrRejected = errors.New("allocation rejected by client")

// Service drains the command queue and applies commands against the
// reservation store and the policy modules.
type Service struct {
	config   Config
	store    *reservation.Store
	modules  module.Module
	queue    messaging.Queue[Command]
	events   *event.Service
	progress *progress.Progress
	hooks    *Hooks
	logger   logr.Logger

	// deferred and pending are guarded by the store lock.
	deferred []*Command
	pending  map[string][]*pendingGrant

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
	startOnce    sync.Once
}

// pendingGrant is a committed grant waiting for module preparation.
// committed orders the commit against release notifications.
type pendingGrant struct {
	*Command
	committed uint64
}

// New creates a new allocator service
func New(store *reservation.Store, modules module.Module, options ...Option) *Service {
	ret := &Service{
		config:     DefaultConfig(),
		store:      store,
		modules:    modules,
		pending:    make(map[string][]*pendingGrant),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.modules == nil {
		ret.modules = module.NewComposite(ret.logger)
	}
	if ret.queue == nil {
		ret.queue = priority.NewQueue[Command](Less, priority.DefaultConfig())
	}
	ret.logger = logging.OrDiscard(ret.logger).WithName("allocator")
	return ret
}

// Allocate enqueues an allocation request and returns immediately.
func (s *Service) Allocate(ctx context.Context, client model.Client, resources resource.Set) error {
	return s.queue.Publish(ctx, NewCommand(KindAllocate, client, resources))
}

// Released enqueues a release notification for resources that became free.
// It must be called with the store lock held, or from the worker, so that
// the notification is ordered after every grant committed before the free.
func (s *Service) Released(ctx context.Context, client model.Client, resources resource.Set) error {
	return s.queue.Publish(ctx, NewCommand(KindRelease, client, resources))
}

// Retry enqueues a retry of every deferred request.
func (s *Service) Retry(ctx context.Context, client model.Client) error {
	return s.queue.Publish(ctx, NewCommand(KindRetry, client, nil))
}

// PreparationSuccessful enqueues a preparation check for a committed grant.
func (s *Service) PreparationSuccessful(ctx context.Context, moduleName string, client model.Client, resources resource.Set) error {
	cmd := NewCommand(KindPreparedCheck, client, resources)
	cmd.Module = moduleName
	return s.queue.Publish(ctx, cmd)
}

// Deferred returns the number of parked requests.
func (s *Service) Deferred() int {
	s.store.Lock()
	defer s.store.Unlock()
	return len(s.deferred)
}

// Pending returns the number of committed grants awaiting preparation.
func (s *Service) Pending() int {
	s.store.Lock()
	defer s.store.Unlock()
	count := 0
	for _, grants := range s.pending {
		count += len(grants)
	}
	return count
}

// Start runs the worker loop until ctx is done or Shutdown is called.
func (s *Service) Start(ctx context.Context) error {
	started := false
	s.startOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("allocator already started")
	}
	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.shutdownCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		msg, err := s.queue.Consume(ctx)
		if err != nil {
			select {
			case <-s.shutdownCh:
				return nil
			default:
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error(err, "failed to consume command")
			continue
		}
		s.Process(ctx, msg.T())
		if err = msg.Ack(); err != nil {
			s.logger.Error(err, "failed to ack command")
		}
	}
}

// Shutdown stops the worker and waits for the command in flight.
func (s *Service) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	started := true
	s.startOnce.Do(func() {
		started = false
		close(s.done)
	})
	if started {
		<-s.done
	}
}

// Process applies a single command. It is exported for hosts driving the
// allocator without a worker goroutine.
func (s *Service) Process(ctx context.Context, cmd *Command) {
	if cmd == nil || cmd.Client == nil {
		s.logger.Info("ignoring command without client")
		return
	}
	started := time.Now()
	ctx, span := tracing.StartSpan(ctx, "allocator."+cmd.Kind.String(), tracing.KindConsumer)
	span.WithAttributes(map[string]string{
		"command.id": cmd.ID,
		"client.id":  cmd.ClientID(),
		"resources":  strings.Join(resource.Names(cmd.Resources), ","),
	})
	s.logger.V(logging.TRACE).Info("processing command", "kind", cmd.Kind.String(), "client", cmd.ClientID(), "id", cmd.ID)

	var err error
	switch cmd.Kind {
	case KindAllocate:
		err = s.allocate(ctx, cmd)
	case KindPreparedCheck:
		err = s.checkPrepared(ctx, cmd)
	case KindRelease:
		s.release(ctx, cmd)
	case KindRetry:
		s.retry(ctx)
	default:
		err = fmt.Errorf("unsupported command kind: %v", cmd.Kind)
		s.logger.Error(err, "dropping command", "client", cmd.ClientID())
	}
	tracing.EndSpan(span, err)
	metrics.RecordCommand(cmd.Kind.String(), time.Since(started))
}

func (s *Service) allocate(ctx context.Context, cmd *Command) error {
	client := cmd.Client
	s.progress.Update(progress.Delta{Submitted: 1})

	s.store.Lock()
	if !s.store.Available(cmd.Resources, client.ID()) {
		s.deferLocked(cmd)
		s.store.Unlock()
		s.reportDeferred(ctx, cmd, "unavailable")
		return nil
	}
	if !s.modules.MayAllocate(client, cmd.Resources) {
		s.deferLocked(cmd)
		s.store.Unlock()
		s.reportDeferred(ctx, cmd, "vetoed")
		return nil
	}
	s.modules.PrepareAllocation(client, cmd.Resources)
	s.commitLocked(cmd)
	if s.modules.HasPreparedAllocation(client, cmd.Resources) {
		s.store.Unlock()
		s.logger.V(logging.DEBUG).Info("committed allocation", "client", client.ID(), "resources", resource.Names(cmd.Resources))
		return s.confirm(ctx, cmd)
	}
	s.pending[client.ID()] = append(s.pending[client.ID()], &pendingGrant{Command: cmd, committed: sequence.Add(1)})
	s.store.Unlock()

	s.logger.V(logging.DEBUG).Info("committed allocation, awaiting preparation", "client", client.ID(), "resources", resource.Names(cmd.Resources))
	return nil
}

// commitLocked records the grant in the store. A resource held by another
// client at this point means the availability check and the commit were not
// atomic, which is unrecoverable.
func (s *Service) commitLocked(cmd *Command) {
	for _, r := range resource.Sorted(cmd.Resources) {
		if err := s.store.Allocate(r, cmd.ClientID()); err != nil {
			panic(err)
		}
	}
}

func (s *Service) deferLocked(cmd *Command) {
	s.deferred = append(s.deferred, cmd)
	count := len(s.deferred)
	metrics.SetDeferred(count)
	if s.config.DeferredWarnThreshold > 0 && count > s.config.DeferredWarnThreshold {
		s.logger.Info("deferred allocation requests above threshold", "deferred", count, "threshold", s.config.DeferredWarnThreshold)
	}
}

func (s *Service) reportDeferred(ctx context.Context, cmd *Command, reason string) {
	s.logger.V(logging.VERBOSE).Info("deferring allocation", "client", cmd.ClientID(), "resources", resource.Names(cmd.Resources), "reason", reason)
	s.progress.Update(progress.Delta{Deferred: 1, Waiting: 1})
	metrics.RecordOutcome(OutcomeDeferred)
	s.hooks.doDeferred(cmd.Client, cmd.Resources, reason)
	s.Announce(ctx, OutcomeDeferred, cmd.Client, cmd.Resources, reason)
}

func (s *Service) checkPrepared(ctx context.Context, cmd *Command) error {
	clientID := cmd.ClientID()
	s.store.Lock()
	grants := s.pending[clientID]
	index := -1
	for i, grant := range grants {
		if grant.Resources.Equal(cmd.Resources) {
			index = i
			break
		}
	}
	if index == -1 {
		s.store.Unlock()
		s.logger.V(logging.DEBUG).Info("no pending grant for preparation check", "client", clientID, "module", cmd.Module, "resources", resource.Names(cmd.Resources))
		return nil
	}
	grant := grants[index]
	if !s.modules.HasPreparedAllocation(grant.Client, grant.Resources) {
		s.store.Unlock()
		s.logger.V(logging.DEBUG).Info("allocation not prepared yet", "client", clientID, "resources", resource.Names(grant.Resources))
		return nil
	}
	if remaining := append(grants[:index:index], grants[index+1:]...); len(remaining) > 0 {
		s.pending[clientID] = remaining
	} else {
		delete(s.pending, clientID)
	}
	s.store.Unlock()
	return s.confirm(ctx, grant.Command)
}

// confirm hands the grant to the client and rolls it back when declined.
func (s *Service) confirm(ctx context.Context, grant *Command) error {
	if s.accepts(grant) {
		s.logger.V(logging.VERBOSE).Info("granted allocation", "client", grant.ClientID(), "resources", resource.Names(grant.Resources))
		s.progress.Update(progress.Delta{Granted: 1})
		metrics.RecordOutcome(OutcomeGranted)
		s.hooks.doGranted(grant.Client, grant.Resources)
		s.Announce(ctx, OutcomeGranted, grant.Client, grant.Resources, "")
		return nil
	}

	s.store.Lock()
	freed := s.store.Free(grant.ClientID(), grant.Resources)
	s.store.Unlock()
	s.logger.V(logging.VERBOSE).Info("client rejected allocation, rolled back", "client", grant.ClientID(), "resources", resource.Names(grant.Resources))
	s.progress.Update(progress.Delta{RolledBack: 1})
	metrics.RecordOutcome(OutcomeRejected)
	s.hooks.doRolledBack(grant.Client, grant.Resources)
	s.Announce(ctx, OutcomeRejected, grant.Client, grant.Resources, "")
	if freed.Cardinality() > 0 {
		if err := s.Released(ctx, grant.Client, freed); err != nil {
			s.logger.Error(err, "failed to enqueue release notification", "client", grant.ClientID())
		}
	}
	s.retry(ctx)
	return ErrRejected
}

// accepts calls the client callback; a panic counts as a rejection.
func (s *Service) accepts(grant *Command) (accepted bool) {
	defer func() {
		x := recover()
		switch t := x.(type) {
		case nil:
		case error:
			s.logger.Error(t, "client panicked accepting allocation", "client", grant.ClientID())
			accepted = false
		default:
			s.logger.Error(fmt.Errorf("panic in client callback: %v", t), "client panicked accepting allocation", "client", grant.ClientID())
			accepted = false
		}
	}()
	return grant.Client.AllocationSuccessful(grant.Resources)
}

func (s *Service) release(ctx context.Context, cmd *Command) {
	s.store.Lock()
	s.dropPendingLocked(cmd.ClientID(), cmd.Resources, cmd.Seq)
	s.modules.AllocationReleased(cmd.Client, cmd.Resources)
	s.store.Unlock()
	count := 0
	if cmd.Resources != nil {
		count = cmd.Resources.Cardinality()
	}
	s.progress.Update(progress.Delta{Released: count})
	metrics.RecordOutcome(OutcomeReleased)
	s.hooks.doReleased(cmd.Client, cmd.Resources)
	s.Announce(ctx, OutcomeReleased, cmd.Client, cmd.Resources, "")
}

// dropPendingLocked forgets unconfirmed grants that were committed before
// the release with sequence seq and freed before their preparation
// completed. Grants committed after the free are kept.
func (s *Service) dropPendingLocked(clientID string, released resource.Set, seq uint64) {
	grants, ok := s.pending[clientID]
	if !ok || resource.IsEmpty(released) {
		return
	}
	kept := grants[:0]
	for _, grant := range grants {
		if grant.committed < seq && released.Intersect(grant.Resources).Cardinality() > 0 {
			s.logger.V(logging.DEBUG).Info("dropping unconfirmed grant", "client", clientID, "resources", resource.Names(grant.Resources))
			continue
		}
		kept = append(kept, grant)
	}
	if len(kept) == 0 {
		delete(s.pending, clientID)
		return
	}
	s.pending[clientID] = kept
}

// retry re-submits every deferred request as a fresh allocation command.
func (s *Service) retry(ctx context.Context) {
	s.store.Lock()
	deferred := s.deferred
	s.deferred = nil
	metrics.SetDeferred(0)
	s.store.Unlock()

	for _, cmd := range deferred {
		if err := s.Allocate(ctx, cmd.Client, cmd.Resources); err != nil {
			s.logger.Error(err, "failed to resubmit deferred allocation", "client", cmd.ClientID())
		}
	}
	s.progress.Update(progress.Delta{Retried: 1, Waiting: -len(deferred)})
	s.hooks.doRetried(len(deferred))
	if len(deferred) > 0 {
		s.logger.V(logging.DEBUG).Info("resubmitted deferred allocations", "count", len(deferred))
	}
}

// Announce publishes an allocation outcome on the event service, if any.
// A full event queue drops the event.
func (s *Service) Announce(ctx context.Context, outcome string, client model.Client, resources resource.Set, reason string) {
	if s.events == nil || !s.config.PublishEvents {
		return
	}
	publisher, err := event.PublisherOf[*Notice](s.events)
	if err != nil {
		s.logger.Error(err, "failed to get event publisher")
		return
	}
	clientID := ""
	if client != nil {
		clientID = client.ID()
	}
	anEvent := event.NewEvent[*Notice](&event.Context{ClientID: clientID, EventType: outcome, Source: "allocator"}, newNotice(outcome, clientID, resources, reason))
	if err = publisher.Publish(ctx, anEvent); err != nil {
		s.logger.V(logging.DEBUG).Info("dropped allocation event", "outcome", outcome, "client", clientID, "error", err.Error())
	}
}
