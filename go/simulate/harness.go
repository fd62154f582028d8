// Package simulate is a randomized multi-replica fault-injection harness
// for the testable properties of spec §8 (P1-P7, S1-S6): message reorder,
// drop, and duplication, plus replica crash/restart, all driven from an
// explicitly-seeded *rand.Rand so a failing run is reproducible.
package simulate

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/estuary/vr/go/driver"
	"github.com/estuary/vr/go/health"
	"github.com/estuary/vr/go/replica"
	"github.com/estuary/vr/go/service"
	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrmsg"
)

// NetworkFaults configures per-envelope delivery perturbation. Every
// outbound envelope is shuffled relative to its batch (modeling reorder),
// then independently subject to drop and duplicate.
type NetworkFaults struct {
	DropProbability      float64
	DuplicateProbability float64
}

// Config parameterizes one Harness run.
type Config struct {
	Group   vrid.GroupIdentifier
	Rand    *rand.Rand // required: callers pass an explicitly-seeded source.
	Network NetworkFaults
	// CrashAt/RestartAt map a poll round number to the replica index
	// crashed or restarted at the start of that round.
	CrashAt   map[int]int
	RestartAt map[int]int
	// Detector constructs a fresh health.Detector for a (re)started
	// replica; defaults to health.NewFake() if nil.
	Detector func() health.Detector
	// ServiceFactory constructs a fresh service for a (re)started replica;
	// defaults to service.NewKV if nil.
	ServiceFactory service.Factory
}

// Harness wires cfg.Group's replicas to an in-memory Driver and plays
// polling rounds with injected faults.
type Harness struct {
	cfg      Config
	drv      *driver.InMemoryDriver
	stores   map[int]*MemoryStore
	replicas map[int]*replica.Replica
	round    int // global poll-round counter, persists across Run calls.
}

// New constructs a Harness with every replica of cfg.Group started fresh.
func New(cfg Config) (*Harness, error) {
	if cfg.Rand == nil {
		return nil, fmt.Errorf("simulate: Config.Rand is required for reproducibility")
	}
	if cfg.Detector == nil {
		cfg.Detector = func() health.Detector { return health.NewFake() }
	}
	if cfg.ServiceFactory == nil {
		cfg.ServiceFactory = service.NewKV
	}

	var h = &Harness{
		cfg:      cfg,
		drv:      driver.NewInMemoryDriver(),
		stores:   make(map[int]*MemoryStore),
		replicas: make(map[int]*replica.Replica),
	}
	for i := 0; i < cfg.Group.N; i++ {
		h.stores[i] = NewMemoryStore()
		if err := h.start(i); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Harness) start(index int) error {
	var self = vrid.ReplicaIdentifier{Group: h.cfg.Group, Index: index}
	var rep, err = replica.New(replica.Config{
		Self:           self,
		Store:          h.stores[index],
		Detector:       h.cfg.Detector(),
		ServiceFactory: h.cfg.ServiceFactory,
	})
	if err != nil {
		return fmt.Errorf("starting replica %d: %w", index, err)
	}
	h.replicas[index] = rep
	h.drv.Register(rep)
	return nil
}

func (h *Harness) crash(index int) {
	delete(h.replicas, index)
	h.drv.Unregister(vrid.ReplicaIdentifier{Group: h.cfg.Group, Index: index})
}

// ReplicaByIndex returns the live Replica at index, if any (a crashed
// replica is absent until restarted).
func (h *Harness) ReplicaByIndex(index int) (*replica.Replica, bool) {
	var r, ok = h.replicas[index]
	return r, ok
}

// SubmitRequest routes a client Request into the group, matching the
// real-world client shape: it doesn't need to know the current primary
// (driver.SubmitClientRequest broadcasts; only the primary acts on it).
func (h *Harness) SubmitRequest(client vrid.ClientIdentifier, requestID vrid.RequestIdentifier, operation []byte) {
	h.drv.SubmitClientRequest(vrmsg.Envelope{
		From:    vrmsg.ToClient(client),
		To:      vrmsg.ToGroup(h.cfg.Group),
		Payload: vrmsg.Request{Client: client, RequestID: requestID, Operation: operation},
	})
}

// DrainClient removes and returns every envelope a client has received so far.
func (h *Harness) DrainClient(client vrid.ClientIdentifier) []vrmsg.Envelope {
	return h.drv.DrainClient(client)
}

// Run plays rounds more polling rounds, applying crash/restart and network
// faults at each one per Config. The round counter is global: it persists
// across successive Run calls on the same Harness, so CrashAt/RestartAt
// keys refer to the total number of rounds played so far, not to a count
// local to a single call.
func (h *Harness) Run(rounds int) error {
	for i := 0; i < rounds; i++ {
		h.round++

		if idx, ok := h.cfg.CrashAt[h.round]; ok {
			h.crash(idx)
		}
		if idx, ok := h.cfg.RestartAt[h.round]; ok {
			if err := h.start(idx); err != nil {
				return err
			}
		}

		for _, idx := range h.liveIndexesSorted() {
			var rep = h.replicas[idx]
			if err := rep.Poll(); err != nil {
				return fmt.Errorf("round %d: replica %d: %w", h.round, idx, err)
			}
			h.routePerturbed(rep.Mailbox().DrainOutbound())
		}
	}
	return nil
}

// DriveToEmpty polls every live replica repeatedly (without crash/restart
// or network faults) until no mailbox holds anything — used after Run to
// let a quiescent group settle before assertions.
func (h *Harness) DriveToEmpty() error {
	for {
		var any bool
		for _, idx := range h.liveIndexesSorted() {
			if !h.replicas[idx].Mailbox().IsEmpty() {
				any = true
				break
			}
		}
		if !any {
			return nil
		}
		for _, idx := range h.liveIndexesSorted() {
			var rep = h.replicas[idx]
			if err := rep.Poll(); err != nil {
				return fmt.Errorf("replica %d: %w", idx, err)
			}
			for _, env := range rep.Mailbox().DrainOutbound() {
				h.drv.Route(env)
			}
		}
	}
}

func (h *Harness) routePerturbed(outbound []vrmsg.Envelope) {
	h.cfg.Rand.Shuffle(len(outbound), func(i, j int) {
		outbound[i], outbound[j] = outbound[j], outbound[i]
	})
	for _, env := range outbound {
		if h.cfg.Rand.Float64() < h.cfg.Network.DropProbability {
			continue
		}
		h.drv.Route(env)
		if h.cfg.Rand.Float64() < h.cfg.Network.DuplicateProbability {
			h.drv.Route(env)
		}
	}
}

func (h *Harness) liveIndexesSorted() []int {
	var out = make([]int, 0, len(h.replicas))
	for idx := range h.replicas {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
