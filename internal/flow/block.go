package flow

// BlockKind enumerates the flow block kinds a RouteFlow's blocks can be
// (spec §3 RouteFlow, §4.J).
type BlockKind string

const (
	BlockFetch      BlockKind = "FETCH"
	BlockFilter     BlockKind = "FILTER"
	BlockUpdate     BlockKind = "UPDATE"
	BlockCreate     BlockKind = "CREATE"
	BlockLoop       BlockKind = "LOOP"
	BlockCondition  BlockKind = "CONDITION"
	BlockAssignment BlockKind = "ASSIGNMENT"
	BlockTemplate   BlockKind = "TEMPLATE"
	BlockObject     BlockKind = "OBJECT"
	BlockProperty   BlockKind = "PROPERTY"
	BlockFunction   BlockKind = "FUNCTION"
	BlockFail       BlockKind = "FAIL"
)

// Filter is one predicate a FILTER block applies to a prior sequence,
// comparing ref_var.ref_property against Value (spec §4.J).
type Filter struct {
	RefVar      string
	RefProperty string
	Operator    ConditionType
	Value       RefData
	Not         bool
	Next        NextConditionType
}

// FieldAssignment is one "set"/"add" entry of an UPDATE/CREATE block:
// which structure field to write, and the operations list that produces
// its value.
type FieldAssignment struct {
	StructureID string
	Operations  []Operation
}

// Block is one node of a RouteFlow. Every field not relevant to Kind is
// left at its zero value; the interpreter only reads the fields that
// matter for a given Kind, matching the source's per-kind struct family
// flattened into one Go type for simplicity of ordering by GlobalIndex.
type Block struct {
	GlobalIndex int
	BlockIndex  int
	Kind        BlockKind

	LocalName   string
	RefVar      string
	RefProperty string
	RefCol      string

	Filters    []Filter
	Conditions []Condition
	Operations []Operation

	// TEMPLATE
	Template string

	// CONDITION: on false, skip the next SkipCount blocks; if FailOnFalse
	// is set instead, raise the declared FAIL. On true, OnTrue names a
	// loop-control signal (BREAK/CONTINUE) to emit instead of falling
	// through to the next block — the source's CONDITION-as-loop-guard
	// pattern (route_x/x.rs obtain_signal).
	SkipCount   int
	FailOnFalse bool
	OnTrue      LoopAction

	// LOOP: body is the half-open global-index range [LoopStart, LoopEnd);
	// LoopBound is the numeric bound the loop variable (bound under
	// LocalName) is compared against on entry to each iteration.
	LoopStart int
	LoopEnd   int
	LoopBound RefData

	// UPDATE / CREATE
	Save    bool
	SetOps  []FieldAssignment
	AddOps  []FieldAssignment
	Cond    []Condition // {filter=...} — which records the mutation targets

	// FUNCTION
	FunctionName string
	FunctionArgs []RefData

	// OBJECT
	ObjectFields map[string]RefData

	// FAIL
	FailStatus  int
	FailMessage string
}

// Program is a RouteFlow's blocks, normalised to canonical order (spec
// §3: "the canonical block order comes from sorting by global_index").
type Program struct {
	Blocks []Block
}

func NewProgram(blocks []Block) Program {
	ordered := make([]Block, len(blocks))
	copy(ordered, blocks)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j-1].GlobalIndex > ordered[j].GlobalIndex; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}
	return Program{Blocks: ordered}
}

// Order returns the GlobalBlockOrder view over p, for lookups that need a
// (name, block_index, kind) index rather than the blocks themselves.
func (p Program) Order() *GlobalBlockOrder {
	entries := make([]OrderEntry, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		if b.LocalName == "" {
			continue
		}
		entries = append(entries, OrderEntry{Name: b.LocalName, GlobalIndex: b.GlobalIndex, BlockIndex: b.BlockIndex, Kind: string(b.Kind)})
	}
	return NewGlobalBlockOrder(entries)
}
