package flow

// entry is one binding in the store: a name visible from block_index
// onward, holding the most recently evaluated Value for that name.
type entry struct {
	name       string
	blockIndex int
	value      Value
}

// DefinitionStore is the per-request symbol table (spec §4.H). It is
// request-local and never shared across requests, so it needs no locking
// — a fresh one is created per incoming request.
type DefinitionStore struct {
	entries []entry
	// closedLoopScopes tracks the [start,end) block_index range of every
	// loop body that has exited, so names declared inside become invisible
	// once the loop exits (spec §4.H: "names declared inside a loop body are
	// invisible outside that body after the loop ends").
	closedLoopScopes []loopScope
}

type loopScope struct {
	start, end int
}

func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{}
}

// Set records value under name, visible from blockIndex onward.
func (s *DefinitionStore) Set(name string, blockIndex int, value Value) {
	s.entries = append(s.entries, entry{name: name, blockIndex: blockIndex, value: value})
}

// CloseLoopScope marks [start,end) as a loop body whose bindings must not
// leak past end once the loop terminates.
func (s *DefinitionStore) CloseLoopScope(start, end int) {
	s.closedLoopScopes = append(s.closedLoopScopes, loopScope{start: start, end: end})
}

// GetRefIndex returns the highest block_index <= at whose entry with this
// name is visible at block `at` (spec §4.H: "lexical by block index").
// An entry whose block_index falls inside a closed loop scope is invisible
// once `at` is past that scope's end.
func (s *DefinitionStore) GetRefIndex(name string, at int) (Value, bool) {
	bestIdx := -1
	var best Value
	for _, e := range s.entries {
		if e.name != name || e.blockIndex > at {
			continue
		}
		if s.isHiddenAt(e.blockIndex, at) {
			continue
		}
		if e.blockIndex >= bestIdx {
			bestIdx = e.blockIndex
			best = e.value
		}
	}
	if bestIdx < 0 {
		return Undefined(), false
	}
	return best, true
}

func (s *DefinitionStore) isHiddenAt(declaredAt, lookupAt int) bool {
	for _, scope := range s.closedLoopScopes {
		if declaredAt >= scope.start && declaredAt < scope.end && lookupAt >= scope.end {
			return true
		}
	}
	return false
}

// OrderEntry describes one block's position for GlobalBlockOrder purposes.
type OrderEntry struct {
	Name        string
	GlobalIndex int
	BlockIndex  int
	Kind        string
}

// GlobalBlockOrder is the ordered view over every block of a flow, sorted
// by GlobalIndex (spec §4.H).
type GlobalBlockOrder struct {
	Entries []OrderEntry
}

func NewGlobalBlockOrder(entries []OrderEntry) *GlobalBlockOrder {
	return &GlobalBlockOrder{Entries: entries}
}
