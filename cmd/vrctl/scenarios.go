package main

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/fatih/color"

	"github.com/estuary/vr/go/health"
	"github.com/estuary/vr/go/simulate"
	"github.com/estuary/vr/go/vrid"
	"github.com/estuary/vr/go/vrmsg"
)

type scenario struct {
	name     string
	describe string
	run      func(out io.Writer) error
}

var scenarios = []scenario{
	{
		name:     "basic-commit",
		describe: "a single client request commits and the client gets a reply",
		run:      runBasicCommit,
	},
	{
		name:     "view-change-on-primary-crash",
		describe: "the primary crashes mid-round and the group elects a new one",
		run:      runViewChangeOnPrimaryCrash,
	},
	{
		name:     "concurrent-request-rejected",
		describe: "a client sends a second request before its first one resolves",
		run:      runConcurrentRequestRejected,
	},
	{
		name:     "recovery-after-restart",
		describe: "a replica restarts with no prior committed work and rejoins",
		run:      runRecoveryAfterRestart,
	},
	{
		name:     "state-transfer-catchup",
		describe: "a crashed backup returns after the group has moved on, and catches up",
		run:      runStateTransferCatchup,
	},
	{
		name:     "network-reorder-tolerance",
		describe: "a noisy network (reorder/drop/duplicate) still converges",
		run:      runNetworkReorderTolerance,
	},
}

func findScenario(name string) (scenario, bool) {
	for _, s := range scenarios {
		if s.name == name {
			return s, true
		}
	}
	return scenario{}, false
}

func group(n int) vrid.GroupIdentifier { return vrid.GroupIdentifier{Token: "demo", N: n} }

func printReplies(out io.Writer, envs []vrmsg.Envelope) {
	for _, env := range envs {
		switch p := env.Payload.(type) {
		case vrmsg.Reply:
			color.New(color.FgGreen).Fprintf(out, "  reply: request %d -> %q\n", p.RequestID, p.Result)
		case vrmsg.ConcurrentRequest:
			color.New(color.FgYellow).Fprintf(out, "  concurrent-request: already have %d in flight\n", p.Seen)
		case vrmsg.OutdatedRequest:
			color.New(color.FgYellow).Fprintf(out, "  outdated-request: already saw %d\n", p.Seen)
		case vrmsg.OutdatedView:
			color.New(color.FgYellow).Fprintf(out, "  outdated-view\n")
		default:
			fmt.Fprintf(out, "  %s\n", env.Payload.Kind())
		}
	}
}

func runBasicCommit(out io.Writer) error {
	var h, err = simulate.New(simulate.Config{Group: group(3), Rand: rand.New(rand.NewSource(1))})
	if err != nil {
		return err
	}
	h.SubmitRequest("client-a", 1, []byte("SET x 1"))
	if err := h.DriveToEmpty(); err != nil {
		return err
	}
	printReplies(out, h.DrainClient("client-a"))
	return nil
}

func runViewChangeOnPrimaryCrash(out io.Writer) error {
	var h, err = simulate.New(simulate.Config{
		Group:   group(3),
		Rand:    rand.New(rand.NewSource(2)),
		CrashAt: map[int]int{1: 0}, // crash replica 0, the view-0 primary, before round 1.
		// Survivors' detectors report the crashed primary Unhealthy.
		Detector: func() health.Detector {
			var f = health.NewFake()
			f.Set(0, health.Unhealthy)
			return f
		},
	})
	if err != nil {
		return err
	}
	h.SubmitRequest("client-a", 1, []byte("SET x 1"))
	if err := h.Run(20); err != nil {
		return err
	}
	if err := h.DriveToEmpty(); err != nil {
		return err
	}
	if rep, ok := h.ReplicaByIndex(1); ok {
		color.New(color.FgCyan).Fprintf(out, "replica 1: status=%s view=%d committed=%d\n", rep.Status(), rep.View(), rep.Committed())
	}
	printReplies(out, h.DrainClient("client-a"))
	return nil
}

func runConcurrentRequestRejected(out io.Writer) error {
	var h, err = simulate.New(simulate.Config{Group: group(3), Rand: rand.New(rand.NewSource(3))})
	if err != nil {
		return err
	}
	h.SubmitRequest("client-a", 1, []byte("SET x 1"))
	h.SubmitRequest("client-a", 2, []byte("SET x 2")) // sent before request 1 resolves.
	if err := h.DriveToEmpty(); err != nil {
		return err
	}
	printReplies(out, h.DrainClient("client-a"))
	return nil
}

func runRecoveryAfterRestart(out io.Writer) error {
	var h, err = simulate.New(simulate.Config{
		Group:     group(3),
		Rand:      rand.New(rand.NewSource(4)),
		CrashAt:   map[int]int{2: 1},
		RestartAt: map[int]int{4: 1},
	})
	if err != nil {
		return err
	}
	if err := h.Run(6); err != nil {
		return err
	}
	if err := h.DriveToEmpty(); err != nil {
		return err
	}
	if rep, ok := h.ReplicaByIndex(2); ok {
		color.New(color.FgCyan).Fprintf(out, "replica 2: status=%s view=%d\n", rep.Status(), rep.View())
	}
	return nil
}

func runStateTransferCatchup(out io.Writer) error {
	var h, err = simulate.New(simulate.Config{
		Group:     group(3),
		Rand:      rand.New(rand.NewSource(5)),
		CrashAt:   map[int]int{1: 1},
		RestartAt: map[int]int{6: 1},
	})
	if err != nil {
		return err
	}
	h.SubmitRequest("client-a", 1, []byte("SET x 1"))
	if err := h.Run(3); err != nil {
		return err
	}
	h.SubmitRequest("client-a", 2, []byte("SET x 2"))
	h.SubmitRequest("client-a", 3, []byte("SET x 3"))
	if err := h.Run(10); err != nil {
		return err
	}
	if err := h.DriveToEmpty(); err != nil {
		return err
	}
	if rep, ok := h.ReplicaByIndex(1); ok {
		color.New(color.FgCyan).Fprintf(out, "replica 1 (restarted): status=%s committed=%d\n", rep.Status(), rep.Committed())
	}
	printReplies(out, h.DrainClient("client-a"))
	return nil
}

func runNetworkReorderTolerance(out io.Writer) error {
	var h, err = simulate.New(simulate.Config{
		Group:   group(3),
		Rand:    rand.New(rand.NewSource(6)),
		Network: simulate.NetworkFaults{DropProbability: 0.1, DuplicateProbability: 0.1},
	})
	if err != nil {
		return err
	}
	for i := vrid.RequestIdentifier(1); i <= 5; i++ {
		h.SubmitRequest("client-a", i, []byte(fmt.Sprintf("SET x %d", i)))
		if err := h.Run(10); err != nil {
			return err
		}
	}
	if err := h.DriveToEmpty(); err != nil {
		return err
	}
	printReplies(out, h.DrainClient("client-a"))
	for i := 0; i < 3; i++ {
		if rep, ok := h.ReplicaByIndex(i); ok {
			color.New(color.FgCyan).Fprintf(out, "replica %d: view=%d committed=%d\n", i, rep.View(), rep.Committed())
		}
	}
	return nil
}
