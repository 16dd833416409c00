package flow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ixode.dev/core/internal/record"
)

type fakeHost struct {
	data    map[string][]record.Data
	saved   map[string][]record.Data
	fetched []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{data: map[string][]record.Data{}, saved: map[string][]record.Data{}}
}

func (h *fakeHost) FetchData(collectionID string) ([]record.Data, error) {
	h.fetched = append(h.fetched, collectionID)
	return h.data[collectionID], nil
}

func (h *fakeHost) SaveData(collectionID string, data []record.Data) error {
	h.saved[collectionID] = data
	return nil
}

// TestRunReturnShortCircuitsRemainingBlocks covers the RETURN short-circuit
// scenario: a RETURN block must stop the program before any later block
// runs, including a FETCH that would otherwise hit the host.
func TestRunReturnShortCircuitsRemainingBlocks(t *testing.T) {
	fetchPosts := Block{Kind: BlockFetch, GlobalIndex: 0, LocalName: "posts", RefCol: "posts"}
	ret := Block{Kind: BlockProperty, GlobalIndex: 1, LocalName: "RETURN", RefVar: "posts"}
	fetchComments := Block{Kind: BlockFetch, GlobalIndex: 2, LocalName: "comments", RefCol: "comments"}
	program := NewProgram([]Block{fetchPosts, ret, fetchComments})

	host := newFakeHost()
	host.data["posts"] = []record.Data{{ID: "1"}}

	ip := NewInterpreter(host)
	sig, err := ip.Run(program)
	require.NoError(t, err)
	require.Equal(t, SignalReturn, sig.Kind)

	require.Equal(t, []string{"posts"}, host.fetched)
}

// TestRunLoopBreakStopsBeforeFinalAssignment is scenario S4: a loop body of
// [CONDITION (i==2 -> BREAK), ASSIGNMENT out=i] over i in [0,3) must leave
// out at the value from i==1, since BREAK fires before the i==2
// assignment ever runs.
func TestRunLoopBreakStopsBeforeFinalAssignment(t *testing.T) {
	header := Block{
		Kind: BlockLoop, GlobalIndex: 0, LocalName: "i",
		LoopStart: 1, LoopEnd: 3,
		LoopBound: RefData{Data: "3", Rtype: KindInteger},
	}
	guard := Block{
		Kind: BlockCondition, GlobalIndex: 1,
		Conditions: []Condition{{
			Left:     RefData{Data: "i", RefVar: true, Rtype: KindInteger},
			Right:    RefData{Data: "2", Rtype: KindInteger},
			Operator: EqualTo,
		}},
		OnTrue: LoopActionBreak,
	}
	assign := Block{
		Kind: BlockAssignment, GlobalIndex: 2, LocalName: "out",
		Operations: []Operation{{
			Left:     RefData{Data: "i", RefVar: true, Rtype: KindInteger},
			Operator: OpNone,
		}},
	}
	after := Block{Kind: BlockAssignment, GlobalIndex: 3, LocalName: "_after"}
	blocks := []Block{header, guard, assign, after}

	store := NewDefinitionStore()
	ip := NewInterpreter(newFakeHost())
	sig, next, err := ip.runLoop(blocks, 0, store, map[string]*pendingSave{})
	require.NoError(t, err)
	require.Equal(t, SignalNone, sig.Kind)
	require.Equal(t, 3, next)

	out, ok := store.GetRefIndex("out", 2)
	require.True(t, ok)
	require.Equal(t, KindInteger, out.Kind)
	require.EqualValues(t, 1, out.Int)
}

// TestRunLoopSeedsCounterBeforeFirstIteration covers the loop-entry bug: a
// body block resolving the loop variable with no explicit Rtype must see a
// concrete INTEGER 0 on the first pass, not an unresolved reference.
func TestRunLoopSeedsCounterBeforeFirstIteration(t *testing.T) {
	header := Block{
		Kind: BlockLoop, GlobalIndex: 0, LocalName: "i",
		LoopStart: 1, LoopEnd: 2,
		LoopBound: RefData{Data: "1", Rtype: KindInteger},
	}
	snapshot := Block{
		Kind: BlockAssignment, GlobalIndex: 1, LocalName: "out",
		Operations: []Operation{{
			Left:     RefData{Data: "i", RefVar: true},
			Operator: OpNone,
		}},
	}
	after := Block{Kind: BlockAssignment, GlobalIndex: 2, LocalName: "_after"}
	blocks := []Block{header, snapshot, after}

	store := NewDefinitionStore()
	ip := NewInterpreter(newFakeHost())
	_, _, err := ip.runLoop(blocks, 0, store, map[string]*pendingSave{})
	require.NoError(t, err)

	out, ok := store.GetRefIndex("out", 1)
	require.True(t, ok)
	require.Equal(t, KindInteger, out.Kind)
	require.EqualValues(t, 0, out.Int)
}

// TestRunLoopIteratesFullBound exercises an ordinary multi-pass loop with
// no break: the counter must reach the bound and the body must have run
// once per value in [0,bound).
func TestRunLoopIteratesFullBound(t *testing.T) {
	header := Block{
		Kind: BlockLoop, GlobalIndex: 0, LocalName: "i",
		LoopStart: 1, LoopEnd: 2,
		LoopBound: RefData{Data: "3", Rtype: KindInteger},
	}
	count := Block{
		Kind: BlockAssignment, GlobalIndex: 1, LocalName: "seen",
		Operations: []Operation{{
			Left:     RefData{Data: "seen", RefVar: true, Rtype: KindInteger},
			Right:    RefData{Data: "1", Rtype: KindInteger},
			Operator: OpAddition,
		}},
	}
	after := Block{Kind: BlockAssignment, GlobalIndex: 2, LocalName: "_after"}
	blocks := []Block{header, count, after}

	store := NewDefinitionStore()
	ip := NewInterpreter(newFakeHost())
	_, _, err := ip.runLoop(blocks, 0, store, map[string]*pendingSave{})
	require.NoError(t, err)

	seen, ok := store.GetRefIndex("seen", 1)
	require.True(t, ok)
	require.EqualValues(t, 3, seen.Int)
}

// TestRunConditionSkipsDeclaredBlockCount covers the on-false skip-count
// behavior of a CONDITION block: a false condition must skip exactly
// SkipCount following blocks, leaving their assignments unexecuted.
func TestRunConditionSkipsDeclaredBlockCount(t *testing.T) {
	guard := Block{
		Kind: BlockCondition, GlobalIndex: 0,
		Conditions: []Condition{{
			Left:     RefData{Data: "1", Rtype: KindInteger},
			Right:    RefData{Data: "2", Rtype: KindInteger},
			Operator: EqualTo,
		}},
		SkipCount: 1,
	}
	skipped := Block{
		Kind: BlockAssignment, GlobalIndex: 1, LocalName: "skipped",
		Operations: []Operation{{Left: RefData{Data: "yes", Rtype: KindString}, Operator: OpNone}},
	}
	tail := Block{Kind: BlockProperty, GlobalIndex: 2, LocalName: "RETURN", RefVar: "skipped"}
	program := NewProgram([]Block{guard, skipped, tail})

	ip := NewInterpreter(newFakeHost())
	sig, err := ip.Run(program)
	require.NoError(t, err)
	require.Equal(t, SignalReturn, sig.Kind)
	require.Equal(t, KindUndefined, sig.Value.Kind)
}

// TestRunConditionFailOnFalseRaisesDeclaredFail covers the other CONDITION
// outcome: a false condition with fail_on_false set raises the declared
// FAIL instead of skipping.
func TestRunConditionFailOnFalseRaisesDeclaredFail(t *testing.T) {
	guard := Block{
		Kind: BlockCondition, GlobalIndex: 0,
		Conditions: []Condition{{
			Left:     RefData{Data: "1", Rtype: KindInteger},
			Right:    RefData{Data: "2", Rtype: KindInteger},
			Operator: EqualTo,
		}},
		FailOnFalse: true,
		FailStatus:  403,
		FailMessage: "Error: guard failed",
	}
	program := NewProgram([]Block{guard})

	ip := NewInterpreter(newFakeHost())
	sig, err := ip.Run(program)
	require.NoError(t, err)
	require.Equal(t, SignalFail, sig.Kind)
	require.Equal(t, 403, sig.Status)
	require.Equal(t, "Error: guard failed", sig.Message)
}

// TestResolveOperationsPromotesIntegerPlusFloat is scenario S5: folding
// INTEGER 3 with FLOAT 1.5 under addition must promote to FLOAT(4.5).
func TestResolveOperationsPromotesIntegerPlusFloat(t *testing.T) {
	store := NewDefinitionStore()
	ops := []Operation{{
		Left:     RefData{Data: "3", Rtype: KindInteger},
		Right:    RefData{Data: "1.5", Rtype: KindFloat},
		Operator: OpAddition,
	}}

	result, err := ResolveOperations(ops, store, 0)
	require.NoError(t, err)
	require.Equal(t, KindFloat, result.Kind)
	require.InDelta(t, 4.5, result.Float, 1e-9)
}

// TestResolveOperationsFoldsBooleanChain covers operation folding beyond
// arithmetic: a chain of boolean operations combines left to right via
// each operation's Next.
func TestResolveOperationsFoldsBooleanChain(t *testing.T) {
	store := NewDefinitionStore()
	ops := []Operation{
		{Left: RefData{Data: "true", Rtype: KindBoolean}, Operator: OpNone},
		{Left: RefData{Data: "false", Rtype: KindBoolean}, Operator: OpNone, Next: NextAnd},
	}

	result, err := ResolveOperations(ops, store, 0)
	require.NoError(t, err)
	require.Equal(t, KindBoolean, result.Kind)
	require.False(t, result.Bool)
}

// TestRunSaveUpdatePersistsThroughHost exercises an UPDATE block with
// save=true, confirming the interpreter flushes pending saves to the host
// once the program finishes.
func TestRunSaveUpdatePersistsThroughHost(t *testing.T) {
	fetchPosts := Block{Kind: BlockFetch, GlobalIndex: 0, LocalName: "posts", RefCol: "posts"}
	update := Block{
		Kind: BlockUpdate, GlobalIndex: 1, LocalName: "updated",
		RefVar: "posts", RefCol: "posts", Save: true,
		SetOps: []FieldAssignment{{
			StructureID: "title",
			Operations:  []Operation{{Left: RefData{Data: "renamed", Rtype: KindString}, Operator: OpNone}},
		}},
	}
	program := NewProgram([]Block{fetchPosts, update})

	host := newFakeHost()
	host.data["posts"] = []record.Data{{ID: "1", Pairs: []record.DataPair{{StructureID: "title", Value: "original"}}}}

	ip := NewInterpreter(host)
	sig, err := ip.Run(program)
	require.NoError(t, err)
	require.Equal(t, SignalReturn, sig.Kind)

	saved := host.saved["posts"]
	require.Len(t, saved, 1)
	require.Equal(t, "renamed", saved[0].Pairs[0].Value)
}
