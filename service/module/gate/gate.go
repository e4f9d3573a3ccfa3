package gate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-logr/logr"

	"github.com/viant/fleetsched/internal/clock"
	"github.com/viant/fleetsched/internal/idgen"
	"github.com/viant/fleetsched/internal/logging"
	"github.com/viant/fleetsched/model"
	"github.com/viant/fleetsched/model/resource"
	"github.com/viant/fleetsched/service/dao"
	"github.com/viant/fleetsched/service/dao/store"
	"github.com/viant/fleetsched/service/messaging"
	qmem "github.com/viant/fleetsched/service/messaging/memory"
	"github.com/viant/fleetsched/service/module"
)

// Name is the module name reported in logs and metrics.
const Name = "gate"

// Config lists the resources that need opening before a grant completes.
type Config struct {
	Gated []string `json:"gated,omitempty" yaml:"gated,omitempty"`
}

type grant struct {
	client    model.Client
	resources resource.Set
}

// Module holds grants of gated resources until their request is opened.
type Module struct {
	module.Base
	gated     resource.Set
	requests  dao.Service[string, Request]
	decisions dao.Service[string, Decision]
	events    messaging.Queue[Event]
	logger    logr.Logger

	mux     sync.Mutex
	grants  map[string]*grant // by request id
	current map[string]string // grant key to latest request id
}

func requestKey(r *Request) string   { return r.ID }
func decisionKey(d *Decision) string { return d.ID }

func matchRequest(r *Request, parameter *dao.Parameter) bool {
	switch parameter.Name {
	case "client":
		return parameter.Matches(r.ClientID)
	case "gated":
		for _, name := range r.Gated {
			if parameter.Matches(name) {
				return true
			}
		}
		return false
	}
	return true
}

// New creates a gate module.
func New(config Config, opts ...Option) (*Module, error) {
	ret := &Module{
		Base:    module.NewBase(Name),
		gated:   resource.NewSet(),
		grants:  make(map[string]*grant),
		current: make(map[string]string),
	}
	for _, text := range config.Gated {
		r, err := resource.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("invalid gated resource: %w", err)
		}
		ret.gated.Add(r)
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.logger = logging.OrDiscard(ret.logger).WithName(Name)
	if ret.requests == nil {
		ret.requests = store.NewMemoryStore[string, Request](requestKey,
			store.WithMatcher[string, Request](matchRequest),
			store.WithOrder[string, Request](func(a, b *Request) bool { return a.CreatedAt.Before(b.CreatedAt) }))
	}
	if ret.decisions == nil {
		ret.decisions = store.NewMemoryStore[string, Decision](decisionKey)
	}
	if ret.events == nil {
		config := qmem.DefaultConfig()
		config.NonBlocking = true
		ret.events = qmem.NewQueue[Event](config)
	}
	return ret, nil
}

// Queue returns the request and decision event queue.
func (m *Module) Queue() messaging.Queue[Event] { return m.events }

// IsGated reports whether r needs opening.
func (m *Module) IsGated(r resource.Resource) bool { return m.gated.Contains(r) }

func (m *Module) gatedOf(resources resource.Set) resource.Set {
	ret := resource.NewSet()
	for _, r := range resource.Sorted(resources) {
		if m.gated.Contains(r) {
			ret.Add(r)
		}
	}
	return ret
}

func grantKey(clientID string, resources resource.Set) string {
	return clientID + "|" + strings.Join(resource.Names(resources), ",")
}

// PrepareAllocation files a request when the grant contains gated resources.
// An unopened request for the same grant is reused.
func (m *Module) PrepareAllocation(client model.Client, resources resource.Set) {
	gated := m.gatedOf(resources)
	if resource.IsEmpty(gated) {
		return
	}
	ctx := context.Background()
	key := grantKey(client.ID(), resources)

	m.mux.Lock()
	if id, ok := m.current[key]; ok {
		if decision, _ := m.decisions.Load(ctx, id); decision == nil {
			m.mux.Unlock()
			return
		}
	}
	request := &Request{
		ID:        idgen.NewWithPrefix(Name),
		ClientID:  client.ID(),
		Gated:     resource.Names(gated),
		Resources: resource.Names(resources),
		CreatedAt: clock.Now(),
	}
	m.grants[request.ID] = &grant{client: client, resources: resources}
	m.current[key] = request.ID
	m.mux.Unlock()

	if err := m.requests.Save(ctx, request); err != nil {
		m.logger.Error(err, "failed to save gate request", "id", request.ID)
		return
	}
	m.logger.V(logging.VERBOSE).Info("gate request filed", "id", request.ID, "client", request.ClientID, "gated", request.Gated)
	m.publish(ctx, TopicRequestCreated, request)
}

// HasPreparedAllocation is true for grants without gated resources and for
// grants whose request was opened.
func (m *Module) HasPreparedAllocation(client model.Client, resources resource.Set) bool {
	if resource.IsEmpty(m.gatedOf(resources)) {
		return true
	}
	m.mux.Lock()
	id, ok := m.current[grantKey(client.ID(), resources)]
	m.mux.Unlock()
	if !ok {
		return true
	}
	decision, _ := m.decisions.Load(context.Background(), id)
	return decision != nil
}

// AllocationReleased drops requests of grants that were released.
func (m *Module) AllocationReleased(client model.Client, resources resource.Set) {
	if resource.IsEmpty(resources) {
		return
	}
	var dropped []string
	m.mux.Lock()
	for id, g := range m.grants {
		if g.client.ID() != client.ID() || !overlaps(g.resources, resources) {
			continue
		}
		dropped = append(dropped, id)
		delete(m.grants, id)
		key := grantKey(g.client.ID(), g.resources)
		if m.current[key] == id {
			delete(m.current, key)
		}
	}
	m.mux.Unlock()

	ctx := context.Background()
	for _, id := range dropped {
		request, _ := m.requests.Load(ctx, id)
		_ = m.requests.Delete(ctx, id)
		_ = m.decisions.Delete(ctx, id)
		if request != nil {
			m.publish(ctx, TopicRequestDropped, request)
		}
	}
}

// Terminate forgets every request.
func (m *Module) Terminate(context.Context) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.grants = make(map[string]*grant)
	m.current = make(map[string]string)
	return nil
}

// ListPending returns unopened requests, oldest first.
func (m *Module) ListPending(ctx context.Context, parameters ...*dao.Parameter) ([]*Request, error) {
	all, err := m.requests.List(ctx, parameters...)
	if err != nil {
		return nil, err
	}
	pending := make([]*Request, 0, len(all))
	for _, r := range all {
		if d, _ := m.decisions.Load(ctx, r.ID); d == nil {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// Open records that the gated resources of request id are ready and lets the
// allocator confirm the grant.
func (m *Module) Open(ctx context.Context, id string, reason string) (*Decision, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	request, err := m.requests.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, fmt.Errorf("gate request %s: %w", id, dao.ErrNotFound)
	}
	m.mux.Lock()
	if d, _ := m.decisions.Load(ctx, id); d != nil {
		m.mux.Unlock()
		return nil, fmt.Errorf("gate request %s already opened", id)
	}
	decision := &Decision{ID: id, Reason: reason, OpenedAt: clock.Now()}
	if err = m.decisions.Save(ctx, decision); err != nil {
		m.mux.Unlock()
		return nil, err
	}
	g := m.grants[id]
	m.mux.Unlock()

	m.logger.V(logging.VERBOSE).Info("gate opened", "id", id, "client", request.ClientID)
	m.publish(ctx, TopicDecisionCreated, decision)
	if env := m.Environment(); env != nil && g != nil {
		env.PreparationSuccessful(m, g.client, g.resources)
	}
	return decision, nil
}

func (m *Module) publish(ctx context.Context, topic string, data interface{}) {
	if err := m.events.Publish(ctx, &Event{Topic: topic, Data: data}); err != nil {
		m.logger.V(logging.DEBUG).Info("dropped gate event", "topic", topic, "error", err.Error())
	}
}

func overlaps(a, b resource.Set) bool {
	for _, r := range resource.Sorted(a) {
		if b.Contains(r) {
			return true
		}
	}
	return false
}
