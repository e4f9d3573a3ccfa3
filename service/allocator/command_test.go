package allocator

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/viant/fleetsched/model"
	"github.com/viant/fleetsched/model/resource"
)

func TestLess(t *testing.T) {
	at := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	clientA := model.NewClient("A", nil)
	clientB := model.NewClient("B", nil)
	command := func(kind Kind, client model.Client, offset time.Duration, seq uint64) *Command {
		return &Command{Kind: kind, Client: client, CreatedAt: at.Add(offset), Seq: seq}
	}

	testCases := []struct {
		description string
		a, b        *Command
		expect      bool
	}{
		{description: "release before retry", a: command(KindRelease, clientB, time.Second, 9), b: command(KindRetry, clientA, 0, 1), expect: true},
		{description: "retry before prepared check", a: command(KindRetry, clientA, time.Second, 2), b: command(KindPreparedCheck, clientA, 0, 1), expect: true},
		{description: "prepared check before allocate", a: command(KindPreparedCheck, clientB, time.Second, 2), b: command(KindAllocate, clientA, 0, 1), expect: true},
		{description: "allocate after release", a: command(KindAllocate, clientA, 0, 1), b: command(KindRelease, clientA, time.Second, 2), expect: false},
		{description: "older first within kind", a: command(KindAllocate, clientB, 0, 2), b: command(KindAllocate, clientA, time.Second, 1), expect: true},
		{description: "client id breaks time tie", a: command(KindAllocate, clientA, 0, 2), b: command(KindAllocate, clientB, 0, 1), expect: true},
		{description: "sequence breaks full tie", a: command(KindAllocate, clientA, 0, 1), b: command(KindAllocate, clientA, 0, 2), expect: true},
		{description: "irreflexive", a: command(KindAllocate, clientA, 0, 1), b: command(KindAllocate, clientA, 0, 1), expect: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.expect, Less(testCase.a, testCase.b))
		})
	}
}

func TestNewCommand(t *testing.T) {
	client := model.NewClient("A", nil)
	first := NewCommand(KindAllocate, client, resource.NewSet(resource.Point("P1")))
	second := NewCommand(KindAllocate, client, resource.NewSet(resource.Point("P2")))
	assert.Less(t, first.Seq, second.Seq)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "A", first.ClientID())
	assert.Equal(t, "", (&Command{}).ClientID())

	commands := []*Command{
		NewCommand(KindAllocate, client, nil),
		NewCommand(KindRetry, client, nil),
		NewCommand(KindPreparedCheck, client, nil),
		NewCommand(KindRelease, client, nil),
	}
	sort.Slice(commands, func(i, j int) bool { return Less(commands[i], commands[j]) })
	var kinds []string
	for _, cmd := range commands {
		kinds = append(kinds, cmd.Kind.String())
	}
	assert.Equal(t, []string{"release", "retry", "preparedCheck", "allocate"}, kinds)
	assert.Equal(t, "unknown", Kind(42).String())
}
