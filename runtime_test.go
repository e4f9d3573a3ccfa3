package fleetsched_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/viant/fleetsched"
	"github.com/viant/fleetsched/model"
	"github.com/viant/fleetsched/model/resource"
	"github.com/viant/fleetsched/policy"
	"github.com/viant/fleetsched/service/allocator"
	"github.com/viant/fleetsched/service/event"
	"github.com/viant/fleetsched/service/module"
	"github.com/viant/fleetsched/service/module/block"
	"github.com/viant/fleetsched/service/module/gate"
)

const waitTimeout = 2 * time.Second

type vehicle struct {
	id      string
	accept  func(resources resource.Set) bool
	granted chan resource.Set
}

func newVehicle(id string) *vehicle {
	return &vehicle{id: id, granted: make(chan resource.Set, 32)}
}

func (v *vehicle) ID() string { return v.id }

func (v *vehicle) AllocationSuccessful(resources resource.Set) bool {
	accepted := true
	if v.accept != nil {
		accepted = v.accept(resources)
	}
	v.granted <- resources
	return accepted
}

func (v *vehicle) await(t *testing.T) []string {
	t.Helper()
	select {
	case resources := <-v.granted:
		return resource.Names(resources)
	case <-time.After(waitTimeout):
		t.Fatalf("%v: timed out waiting for allocation", v.id)
	}
	return nil
}

func (v *vehicle) expectNone(t *testing.T) {
	t.Helper()
	select {
	case resources := <-v.granted:
		t.Fatalf("%v: unexpected allocation %v", v.id, resource.Names(resources))
	case <-time.After(50 * time.Millisecond):
	}
}

func startRuntime(t *testing.T, options ...fleetsched.Option) *fleetsched.Runtime {
	t.Helper()
	options = append([]fleetsched.Option{fleetsched.WithLogger(testr.New(t))}, options...)
	runtime := fleetsched.New(options...).Runtime()
	require.NoError(t, runtime.Start(context.Background()))
	t.Cleanup(func() {
		assert.NoError(t, runtime.Shutdown(context.Background()))
	})
	return runtime
}

func allocationsOf(runtime *fleetsched.Runtime) map[string][]string {
	ret := make(map[string][]string)
	for clientID, held := range runtime.GetAllocations() {
		ret[clientID] = resource.Names(held)
	}
	return ret
}

type switchModule struct {
	module.Base
	allow atomic.Bool
}

func (m *switchModule) MayAllocate(model.Client, resource.Set) bool { return m.allow.Load() }

type stateRecord struct {
	client    string
	allocated []string
	remaining int
}

type stateModule struct {
	module.Base
	mux    sync.Mutex
	states []stateRecord
	claims []string
}

func (m *stateModule) Claim(client model.Client, _ []resource.Set) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.claims = append(m.claims, "claim:"+client.ID())
}

func (m *stateModule) Unclaim(client model.Client) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.claims = append(m.claims, "unclaim:"+client.ID())
}

func (m *stateModule) SetAllocationState(client model.Client, allocated resource.Set, remaining []resource.Set) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.states = append(m.states, stateRecord{client: client.ID(), allocated: resource.Names(allocated), remaining: len(remaining)})
}

func (m *stateModule) snapshot() ([]stateRecord, []string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	return append([]stateRecord(nil), m.states...), append([]string(nil), m.claims...)
}

type failingModule struct {
	module.Base
	err error
}

func (m *failingModule) Initialize(context.Context, module.Environment) error { return m.err }

func TestRuntime_ClaimAndAllocate(t *testing.T) {
	runtime := startRuntime(t)
	ctx := context.Background()
	r1, r2 := resource.Point("r1"), resource.Point("r2")
	clientA := newVehicle("A")

	require.NoError(t, runtime.Claim(ctx, clientA, []resource.Set{resource.NewSet(r1), resource.NewSet(r2)}))
	require.NoError(t, runtime.Allocate(ctx, clientA, resource.NewSet(r1)))
	assert.Equal(t, []string{"point/r1"}, clientA.await(t))
	assert.Equal(t, map[string][]string{"A": {"point/r1"}}, allocationsOf(runtime))
}

func TestRuntime_DeferUntilFree(t *testing.T) {
	runtime := startRuntime(t)
	ctx := context.Background()
	r1 := resource.Point("r1")
	clientA, clientB := newVehicle("A"), newVehicle("B")

	require.NoError(t, runtime.Allocate(ctx, clientA, resource.NewSet(r1)))
	clientA.await(t)
	require.NoError(t, runtime.Allocate(ctx, clientB, resource.NewSet(r1)))
	assert.Eventually(t, func() bool { return runtime.Progress().Waiting == 1 }, waitTimeout, 5*time.Millisecond)
	clientB.expectNone(t)

	require.NoError(t, runtime.Free(ctx, clientA, resource.NewSet(r1)))
	assert.Equal(t, []string{"point/r1"}, clientB.await(t))
	assert.Equal(t, map[string][]string{"B": {"point/r1"}}, allocationsOf(runtime))
}

func TestRuntime_ModuleVeto(t *testing.T) {
	veto := &switchModule{Base: module.NewBase("switch")}
	runtime := startRuntime(t, fleetsched.WithModules(veto))
	ctx := context.Background()
	r3 := resource.Point("r3")
	clientC, clientX := newVehicle("C"), newVehicle("X")

	require.NoError(t, runtime.Allocate(ctx, clientC, resource.NewSet(r3)))
	assert.Eventually(t, func() bool { return runtime.Progress().Waiting == 1 }, waitTimeout, 5*time.Millisecond)
	clientC.expectNone(t)

	veto.allow.Store(true)
	rX := resource.Point("rX")
	runtime.AllocateNow(ctx, clientX, resource.NewSet(rX))
	require.NoError(t, runtime.Free(ctx, clientX, resource.NewSet(rX)))
	assert.Equal(t, []string{"point/r3"}, clientC.await(t))
	assert.Equal(t, map[string][]string{"C": {"point/r3"}}, allocationsOf(runtime))
}

func TestRuntime_ClientRejection(t *testing.T) {
	runtime := startRuntime(t)
	ctx := context.Background()
	r4 := resource.Point("r4")
	clientD := newVehicle("D")
	var calls atomic.Int32
	clientD.accept = func(resource.Set) bool { return calls.Add(1) > 1 }

	require.NoError(t, runtime.Allocate(ctx, clientD, resource.NewSet(r4)))
	clientD.await(t)
	assert.Eventually(t, func() bool { return len(runtime.GetAllocations()) == 0 }, waitTimeout, 5*time.Millisecond)

	require.NoError(t, runtime.Allocate(ctx, clientD, resource.NewSet(r4)))
	assert.Equal(t, []string{"point/r4"}, clientD.await(t))
	assert.Equal(t, map[string][]string{"D": {"point/r4"}}, allocationsOf(runtime))
	assert.Equal(t, 1, runtime.Progress().RolledBack)
}

func TestRuntime_AllocateNow(t *testing.T) {
	runtime := startRuntime(t)
	ctx := context.Background()
	r5, r6 := resource.Point("r5"), resource.Point("r6")
	clientE, clientF := newVehicle("E"), newVehicle("F")

	runtime.AllocateNow(ctx, clientF, resource.NewSet(r6))
	runtime.AllocateNow(ctx, clientE, resource.NewSet(r5, r6))
	assert.Equal(t, map[string][]string{"E": {"point/r5"}, "F": {"point/r6"}}, allocationsOf(runtime))

	snapshot := runtime.Progress()
	assert.Equal(t, 2, snapshot.Forced)
	assert.Equal(t, 1, snapshot.Skipped)
	clientE.expectNone(t)
}

func TestRuntime_FreeAll(t *testing.T) {
	testCases := []struct {
		description string
		release     func(ctx context.Context, runtime *fleetsched.Runtime, client model.Client, r resource.Resource) error
		freeCalls   int
	}{
		{
			description: "free all drops every count at once",
			release: func(ctx context.Context, runtime *fleetsched.Runtime, client model.Client, _ resource.Resource) error {
				return runtime.FreeAll(ctx, client)
			},
			freeCalls: 1,
		},
		{
			description: "free decrements one count per call",
			release: func(ctx context.Context, runtime *fleetsched.Runtime, client model.Client, r resource.Resource) error {
				return runtime.Free(ctx, client, resource.NewSet(r))
			},
			freeCalls: 3,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			runtime := startRuntime(t)
			ctx := context.Background()
			r7 := resource.Point("r7")
			clientG := newVehicle("G")
			for i := 0; i < 3; i++ {
				require.NoError(t, runtime.Allocate(ctx, clientG, resource.NewSet(r7)))
				clientG.await(t)
			}
			for i := 0; i < testCase.freeCalls; i++ {
				assert.Contains(t, allocationsOf(runtime), "G")
				require.NoError(t, testCase.release(ctx, runtime, clientG, r7))
			}
			assert.Empty(t, runtime.GetAllocations())
		})
	}
}

func TestRuntime_ProgressIndex(t *testing.T) {
	states := &stateModule{Base: module.NewBase("state")}
	runtime := startRuntime(t, fleetsched.WithModules(states))
	ctx := context.Background()
	clientA := newVehicle("A")
	steps := []resource.Set{
		resource.NewSet(resource.Point("P1")),
		resource.NewSet(resource.Path("P1-P2")),
		resource.NewSet(resource.Point("P2")),
	}

	err := runtime.UpdateProgressIndex(ctx, clientA, -1)
	assert.ErrorIs(t, err, fleetsched.ErrInvalidProgressIndex)
	assert.NoError(t, runtime.UpdateProgressIndex(ctx, clientA, 1), "no claim yet")

	runtime.AllocateNow(ctx, clientA, resource.NewSet(resource.Point("P1")))
	require.NoError(t, runtime.Claim(ctx, clientA, steps))
	require.NoError(t, runtime.UpdateProgressIndex(ctx, clientA, 2))
	require.NoError(t, runtime.UpdateProgressIndex(ctx, clientA, 1))
	require.NoError(t, runtime.UpdateProgressIndex(ctx, clientA, 4))
	require.NoError(t, runtime.UpdateProgressIndex(ctx, clientA, 3))

	claim, err := runtime.ClaimOf(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, 3, claim.Index)
	assert.Empty(t, claim.Remaining())

	require.NoError(t, runtime.Unclaim(ctx, clientA))
	claim, err = runtime.ClaimOf(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, claim)
	assert.Equal(t, map[string][]string{"A": {"point/P1"}}, allocationsOf(runtime), "unclaim keeps allocations")

	records, claims := states.snapshot()
	assert.Equal(t, []stateRecord{
		{client: "A", allocated: []string{"point/P1"}, remaining: 3},
		{client: "A", allocated: []string{"point/P1"}, remaining: 1},
		{client: "A", allocated: []string{"point/P1"}, remaining: 0},
	}, records)
	assert.Equal(t, []string{"claim:A", "unclaim:A"}, claims)
}

func TestRuntime_MutualExclusion(t *testing.T) {
	runtime := startRuntime(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool := []resource.Resource{resource.Point("P0"), resource.Point("P1"), resource.Point("P2")}
	var occupancyMux sync.Mutex
	occupancy := make(map[resource.Resource]string)
	var violations atomic.Int32

	const clients, rounds = 8, 20
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < clients; i++ {
		id := fmt.Sprintf("AGV-%d", i)
		client := newVehicle(id)
		client.accept = func(resources resource.Set) bool {
			occupancyMux.Lock()
			defer occupancyMux.Unlock()
			for _, r := range resource.Sorted(resources) {
				if holder := occupancy[r]; holder != "" && holder != id {
					violations.Add(1)
				}
				occupancy[r] = id
			}
			return true
		}
		offset := i
		group.Go(func() error {
			for round := 0; round < rounds; round++ {
				wanted := resource.NewSet(pool[(offset+round)%len(pool)], pool[(offset+round+1)%len(pool)])
				if err := runtime.Allocate(groupCtx, client, wanted); err != nil {
					return err
				}
				select {
				case <-client.granted:
				case <-groupCtx.Done():
					return groupCtx.Err()
				}
				occupancyMux.Lock()
				for _, r := range resource.Sorted(wanted) {
					delete(occupancy, r)
				}
				occupancyMux.Unlock()
				if err := runtime.Free(groupCtx, client, wanted); err != nil {
					return err
				}
			}
			return nil
		})
	}

	require.NoError(t, group.Wait())
	assert.Equal(t, int32(0), violations.Load())
	assert.Empty(t, runtime.GetAllocations())
	assert.Eventually(t, func() bool { return runtime.Progress().Granted == clients*rounds }, waitTimeout, 5*time.Millisecond)
}

func TestRuntime_ConfiguredModules(t *testing.T) {
	config := fleetsched.DefaultConfig()
	config.Policy = &policy.Config{Mode: policy.ModeAuto}
	config.Block = &block.Config{Blocks: []block.Block{{Name: "ramp", Resources: []string{"point/R1", "point/R2"}}}}
	config.Gate = &gate.Config{Gated: []string{"location/door-1"}}
	config.Events.Enabled = true

	srv, err := fleetsched.NewFromConfig(config, fleetsched.WithLogger(testr.New(t)))
	require.NoError(t, err)
	runtime := srv.Runtime()

	var noticeMux sync.Mutex
	var notices []string
	require.NoError(t, event.SetListenerOf[*allocator.Notice](runtime.Events(), func(e *event.Event[*allocator.Notice]) {
		noticeMux.Lock()
		defer noticeMux.Unlock()
		notices = append(notices, e.Data.Outcome+":"+e.Data.ClientID)
	}))

	ctx := context.Background()
	require.NoError(t, runtime.Start(ctx))
	defer func() { assert.NoError(t, runtime.Shutdown(ctx)) }()

	var names []string
	for _, m := range runtime.Modules() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{policy.Name, block.Name, gate.Name}, names)
	pause := runtime.Module(policy.Name).(*policy.Module)
	doors := runtime.Module(gate.Name).(*gate.Module)
	assert.Nil(t, runtime.Module("missing"))

	t.Run("policy pause", func(t *testing.T) {
		vehicle := newVehicle("AGV-1")
		pause.Pause("AGV-1")
		require.NoError(t, runtime.Allocate(ctx, vehicle, resource.NewSet(resource.Point("P1"))))
		vehicle.expectNone(t)
		pause.Resume("AGV-1")
		require.NoError(t, runtime.Retry(ctx))
		assert.Equal(t, []string{"point/P1"}, vehicle.await(t))
		require.NoError(t, runtime.FreeAll(ctx, vehicle))
	})

	t.Run("block", func(t *testing.T) {
		first, second := newVehicle("AGV-2"), newVehicle("AGV-3")
		require.NoError(t, runtime.Allocate(ctx, first, resource.NewSet(resource.Point("R1"))))
		first.await(t)
		require.NoError(t, runtime.Allocate(ctx, second, resource.NewSet(resource.Point("R2"))))
		second.expectNone(t)
		require.NoError(t, runtime.Free(ctx, first, resource.NewSet(resource.Point("R1"))))
		assert.Equal(t, []string{"point/R2"}, second.await(t))
		require.NoError(t, runtime.FreeAll(ctx, second))
	})

	t.Run("gate", func(t *testing.T) {
		vehicle := newVehicle("AGV-4")
		require.NoError(t, runtime.Allocate(ctx, vehicle, resource.NewSet(resource.Location("door-1"))))
		var pending []*gate.Request
		assert.Eventually(t, func() bool {
			pending, err = doors.ListPending(ctx)
			return err == nil && len(pending) == 1
		}, waitTimeout, 5*time.Millisecond)
		vehicle.expectNone(t)
		assert.Equal(t, map[string][]string{"AGV-4": {"location/door-1"}}, allocationsOf(runtime), "gated grant is committed while waiting")

		_, err = doors.Open(ctx, pending[0].ID, "opened")
		require.NoError(t, err)
		assert.Equal(t, []string{"location/door-1"}, vehicle.await(t))
		require.NoError(t, runtime.FreeAll(ctx, vehicle))
	})

	assert.Eventually(t, func() bool {
		noticeMux.Lock()
		defer noticeMux.Unlock()
		for _, notice := range notices {
			if notice == "granted:AGV-4" {
				return true
			}
		}
		return false
	}, waitTimeout, 5*time.Millisecond)
}

func TestRuntime_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("start twice", func(t *testing.T) {
		runtime := fleetsched.New(fleetsched.WithLogger(testr.New(t))).Runtime()
		require.NoError(t, runtime.Start(ctx))
		assert.Error(t, runtime.Start(ctx))
		require.NoError(t, runtime.Shutdown(ctx))
		require.NoError(t, runtime.Shutdown(ctx))
		assert.Error(t, runtime.Start(ctx))
	})

	t.Run("module initialization failures are joined", func(t *testing.T) {
		first := &failingModule{Base: module.NewBase("first"), err: errors.New("first failed")}
		second := &failingModule{Base: module.NewBase("second"), err: errors.New("second failed")}
		runtime := fleetsched.New(fleetsched.WithLogger(testr.New(t)), fleetsched.WithModules(first, second)).Runtime()
		err := runtime.Start(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, first.err)
		assert.ErrorIs(t, err, second.err)
	})

	t.Run("invalid module config", func(t *testing.T) {
		config := fleetsched.DefaultConfig()
		config.Block = &block.Config{Blocks: []block.Block{{Name: "empty"}}}
		_, err := fleetsched.NewFromConfig(config, fleetsched.WithLogger(testr.New(t)))
		assert.Error(t, err)

		runtime := fleetsched.New(fleetsched.WithConfig(config), fleetsched.WithLogger(testr.New(t))).Runtime()
		assert.Error(t, runtime.Start(ctx))
	})

	t.Run("tracing failure", func(t *testing.T) {
		outputFile := t.TempDir() + "/missing/trace.json"
		runtime := fleetsched.New(fleetsched.WithLogger(testr.New(t)),
			fleetsched.WithTracing("fleetsched", "test", outputFile)).Runtime()
		err := runtime.Start(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialise tracing")

		_, err = fleetsched.NewFromConfig(nil, fleetsched.WithLogger(testr.New(t)),
			fleetsched.WithTracing("fleetsched", "test", outputFile))
		assert.Error(t, err)
	})

	t.Run("caller contract violations are ignored", func(t *testing.T) {
		runtime := startRuntime(t)
		assert.NoError(t, runtime.Allocate(ctx, nil, resource.NewSet(resource.Point("P1"))))
		assert.NoError(t, runtime.Allocate(ctx, newVehicle("A"), resource.NewSet()))
		assert.NoError(t, runtime.Free(ctx, newVehicle("A"), resource.NewSet(resource.Point("P1"))))
		assert.NoError(t, runtime.FreeAll(ctx, nil))
		assert.NoError(t, runtime.Claim(ctx, nil, nil))
		runtime.AllocateNow(ctx, nil, resource.NewSet(resource.Point("P1")))
		assert.Empty(t, runtime.GetAllocations())
	})
}
