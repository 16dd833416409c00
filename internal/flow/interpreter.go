package flow

import (
	"strings"

	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/record"
)

// Host is the set of collaborators the interpreter needs from the
// persistence fabric: reading a Collection's current records and
// persisting mutations an UPDATE/CREATE block made with save=true. It
// keeps this package free of a direct dependency on the schema/registry
// wiring so it can be driven by tests with a fake.
type Host interface {
	FetchData(collectionID string) ([]record.Data, error)
	SaveData(collectionID string, data []record.Data) error
}

// DefaultIterationCap is the chosen production default for the loop
// guard (spec §4.J / §9 open question: the source's "12" was a debugging
// fence, not a production value). 10000 is high enough for any real
// per-request workload while still bounding a runaway flow.
const DefaultIterationCap = 10000

// Interpreter drives a Program's blocks in order, handling loops and
// signals (spec §4.J).
type Interpreter struct {
	Host         Host
	IterationCap int
}

func NewInterpreter(host Host) *Interpreter {
	return &Interpreter{Host: host, IterationCap: DefaultIterationCap}
}

// pendingSave tracks collections mutated during the request so Run can persist
// them at the end if any block in their chain asked to be saved.
type pendingSave struct {
	collectionID string
	data         []record.Data
}

// Run executes program to completion and returns the terminal Signal: the
// value of the first RETURN block, the error of the first FAIL, or
// {status:200} if the program runs off the end (spec §4.G state machine).
func (ip *Interpreter) Run(program Program) (Signal, error) {
	store := NewDefinitionStore()
	saves := map[string]*pendingSave{}

	sig, err := ip.runRange(program.Blocks, 0, len(program.Blocks), store, saves)
	if err != nil {
		return Signal{}, err
	}

	for _, p := range saves {
		if err := ip.Host.SaveData(p.collectionID, p.data); err != nil {
			return Signal{}, err
		}
	}

	if !sig.IsTerminal() {
		// A BREAK/CONTINUE with no enclosing loop (runLoop always
		// resolves one of its own into a plain None before returning)
		// falls off the end of the program the same as None.
		return Signal{Kind: SignalReturn, Value: Int(200)}, nil
	}
	return sig, nil
}

// runRange evaluates blocks[lo:hi] in order (by position, already sorted
// by GlobalIndex), entering loop subroutines as it encounters them.
func (ip *Interpreter) runRange(blocks []Block, lo, hi int, store *DefinitionStore, saves map[string]*pendingSave) (Signal, error) {
	i := lo
	for i < hi {
		b := blocks[i]

		if b.Kind == BlockLoop {
			sig, next, err := ip.runLoop(blocks, i, store, saves)
			if err != nil {
				return Signal{}, err
			}
			if sig.IsTerminal() {
				return sig, nil
			}
			i = next
			continue
		}

		sig, err := ip.evalBlock(b, store, saves)
		if err != nil {
			return Signal{}, err
		}

		switch sig.Kind {
		case SignalReturn, SignalFail, SignalBreak, SignalContinue:
			// BREAK/CONTINUE must stop this range immediately and
			// bubble up to the enclosing runLoop, which is the only
			// place that interprets them; it discards the remaining
			// body blocks rather than letting them still run.
			return sig, nil
		}

		if b.Kind == BlockCondition && sig.Kind == SignalNone && b.SkipCount > 0 {
			held, err := ResolveConditions(b.Conditions, store, b.GlobalIndex)
			if err != nil {
				return Signal{}, err
			}
			if !held {
				i += b.SkipCount + 1
				continue
			}
		}

		i++
	}
	return NoneSignal(), nil
}

// runLoop implements the LOOP state machine of spec §4.J/§4.G: the header
// block (the LOOP block itself) is evaluated once per iteration to check
// the bound, then the body [start,end) runs; CONTINUE re-enters the
// header, BREAK jumps past end.
func (ip *Interpreter) runLoop(blocks []Block, loopPos int, store *DefinitionStore, saves map[string]*pendingSave) (Signal, int, error) {
	header := blocks[loopPos]
	bodyLo, bodyHi := findBodyRange(blocks, header)

	iterations := 0
	for {
		iterations++
		if iterations > ip.IterationCap {
			return FailSignal(500, "Error: loop iteration cap exceeded"), 0, nil
		}

		if _, ok := store.GetRefIndex(header.LocalName, header.GlobalIndex); !ok {
			// First entry: seed the loop variable at zero before the bound
			// check below ever sees it.
			store.Set(header.LocalName, header.GlobalIndex, Int(0))
		}

		current, err := ResolveRefData(RefData{Data: header.LocalName, RefVar: true, Rtype: header.LoopBound.Rtype}, store, header.GlobalIndex)
		if err != nil {
			return Signal{}, 0, err
		}

		bound, err := ResolveRefData(header.LoopBound, store, header.GlobalIndex)
		if err != nil {
			return Signal{}, 0, err
		}

		reachedBound, err := compare(current, bound, GreaterThanOrEqualTo)
		if err != nil {
			return Signal{}, 0, err
		}
		if reachedBound {
			store.CloseLoopScope(header.LoopStart, header.LoopEnd)
			return NoneSignal(), bodyHi, nil
		}

		sig, err := ip.runRange(blocks, bodyLo, bodyHi, store, saves)
		if err != nil {
			return Signal{}, 0, err
		}

		switch sig.Kind {
		case SignalBreak:
			store.CloseLoopScope(header.LoopStart, header.LoopEnd)
			return NoneSignal(), bodyHi, nil
		case SignalReturn, SignalFail:
			return sig, 0, nil
		}
		// CONTINUE or NONE: advance the controlling variable and
		// re-enter the header (spec: "INTEGER+1 / FLOAT+1.0").
		advanced := advance(current)
		store.Set(header.LocalName, header.GlobalIndex, advanced)
	}
}

func advance(v Value) Value {
	if v.Kind == KindFloat {
		return Float(v.Float + 1.0)
	}
	return Int(asInt(v) + 1)
}

func findBodyRange(blocks []Block, header Block) (int, int) {
	lo, hi := -1, -1
	for i, b := range blocks {
		if b.GlobalIndex == header.LoopStart && lo < 0 {
			lo = i
		}
		if b.GlobalIndex >= header.LoopEnd && hi < 0 {
			hi = i
		}
	}
	if lo < 0 {
		lo = 0
	}
	if hi < 0 {
		hi = len(blocks)
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func (ip *Interpreter) evalBlock(b Block, store *DefinitionStore, saves map[string]*pendingSave) (Signal, error) {
	switch b.Kind {
	case BlockFetch:
		return ip.evalFetch(b, store)
	case BlockFilter:
		return ip.evalFilter(b, store)
	case BlockAssignment:
		return ip.evalAssignment(b, store)
	case BlockTemplate:
		return ip.evalTemplate(b, store)
	case BlockObject:
		return ip.evalObject(b, store)
	case BlockProperty:
		return ip.evalProperty(b, store)
	case BlockCondition:
		return ip.evalCondition(b, store)
	case BlockFunction:
		return ip.evalFunction(b, store)
	case BlockUpdate:
		return ip.evalUpdate(b, store, saves)
	case BlockCreate:
		return ip.evalCreate(b, store, saves)
	case BlockFail:
		return FailSignal(b.FailStatus, b.FailMessage), nil
	default:
		return Signal{}, apperr.Internalf("Error: unsupported block kind %s", b.Kind)
	}
}

func (ip *Interpreter) evalFetch(b Block, store *DefinitionStore) (Signal, error) {
	data, err := ip.Host.FetchData(b.RefCol)
	if err != nil {
		return Signal{}, err
	}
	store.Set(b.LocalName, b.GlobalIndex, Data(data))
	return NoneSignal(), nil
}

func (ip *Interpreter) evalFilter(b Block, store *DefinitionStore) (Signal, error) {
	src, ok := store.GetRefIndex(b.RefVar, b.GlobalIndex)
	if !ok || src.Kind != KindData {
		return Signal{}, apperr.BadInputf("Error: filter references an undefined sequence")
	}
	list, _ := src.Data.([]record.Data)

	var out []record.Data
	for _, d := range list {
		pass, err := matchFilters(b.Filters, d, store, b.GlobalIndex)
		if err != nil {
			return Signal{}, err
		}
		if pass {
			out = append(out, d)
		}
	}
	store.Set(b.LocalName, b.GlobalIndex, Data(out))
	return NoneSignal(), nil
}

func matchFilters(filters []Filter, d record.Data, store *DefinitionStore, at int) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	result := true
	first := true
	for _, f := range filters {
		fieldValue := fieldOf(d, f.RefProperty)
		target, err := ResolveRefData(f.Value, store, at)
		if err != nil {
			return false, err
		}
		local, err := compare(Str(fieldValue), target, f.Operator)
		if err != nil {
			return false, err
		}
		if f.Not {
			local = !local
		}
		if first {
			result = local
			first = false
			continue
		}
		switch f.Next {
		case NextAnd:
			result = result && local
		case NextOr:
			result = result || local
		default:
			result = local
		}
	}
	return result, nil
}

func fieldOf(d record.Data, structureID string) string {
	for _, p := range d.Pairs {
		if p.StructureID == structureID {
			return p.Value
		}
	}
	return ""
}

func (ip *Interpreter) evalAssignment(b Block, store *DefinitionStore) (Signal, error) {
	v, err := ResolveOperations(b.Operations, store, b.GlobalIndex)
	if err != nil {
		return Signal{}, err
	}
	store.Set(b.LocalName, b.GlobalIndex, v)
	return NoneSignal(), nil
}

// evalTemplate binds LocalName to Template with "{ref_var}" interpolation
// resolved against the definition store (spec §4.J).
func (ip *Interpreter) evalTemplate(b Block, store *DefinitionStore) (Signal, error) {
	result := b.Template
	for {
		start := strings.Index(result, "{")
		if start < 0 {
			break
		}
		end := strings.Index(result[start:], "}")
		if end < 0 {
			break
		}
		name := result[start+1 : start+end]
		v, ok := store.GetRefIndex(name, b.GlobalIndex)
		replacement := ""
		if ok {
			replacement = v.asString()
		}
		result = result[:start] + replacement + result[start+end+1:]
	}
	store.Set(b.LocalName, b.GlobalIndex, Str(result))
	return NoneSignal(), nil
}

func (ip *Interpreter) evalObject(b Block, store *DefinitionStore) (Signal, error) {
	obj := map[string]any{}
	for key, ref := range b.ObjectFields {
		v, err := ResolveRefData(ref, store, b.GlobalIndex)
		if err != nil {
			return Signal{}, err
		}
		obj[key] = valueToAny(v)
	}
	store.Set(b.LocalName, b.GlobalIndex, Data(obj))
	return NoneSignal(), nil
}

// evalProperty projects ref_property out of a structured (OBJECT-built)
// value bound under ref_var. An empty ref_property means no projection:
// the bound value passes through untouched, the shape a RETURN of a
// whole FETCH/FILTER sequence takes.
func (ip *Interpreter) evalProperty(b Block, store *DefinitionStore) (Signal, error) {
	var projected Value
	if b.RefProperty == "" {
		src, ok := store.GetRefIndex(b.RefVar, b.GlobalIndex)
		if ok {
			projected = src
		} else {
			projected = Undefined()
		}
	} else {
		v, err := ResolveRefData(RefData{Data: b.RefVar, RefVar: true, Rtype: KindData}, store, b.GlobalIndex)
		if err == nil && v.Kind == KindData {
			if m, ok := v.Data.(map[string]any); ok {
				projected = anyToValue(m[b.RefProperty])
			} else {
				projected = Undefined()
			}
		} else {
			projected = Undefined()
		}
	}

	// RETURN is encoded as a property_block whose name equals RETURN
	// (spec §4.J).
	if strings.EqualFold(b.LocalName, "RETURN") {
		return ReturnSignal(projected), nil
	}

	store.Set(b.LocalName, b.GlobalIndex, projected)
	return NoneSignal(), nil
}

func (ip *Interpreter) evalCondition(b Block, store *DefinitionStore) (Signal, error) {
	ok, err := ResolveConditions(b.Conditions, store, b.GlobalIndex)
	if err != nil {
		return Signal{}, err
	}
	if ok {
		switch b.OnTrue {
		case LoopActionBreak:
			return BreakSignal(), nil
		case LoopActionContinue:
			return ContinueSignal(), nil
		default:
			return NoneSignal(), nil
		}
	}
	if b.FailOnFalse {
		return FailSignal(b.FailStatus, b.FailMessage), nil
	}
	return NoneSignal(), nil
}

// evalFunction calls one of a closed set of string/number/array built-ins
// (spec §4.J: "an enumerated, closed set documented in the
// implementation").
func (ip *Interpreter) evalFunction(b Block, store *DefinitionStore) (Signal, error) {
	args := make([]Value, len(b.FunctionArgs))
	for i, ref := range b.FunctionArgs {
		v, err := ResolveRefData(ref, store, b.GlobalIndex)
		if err != nil {
			return Signal{}, err
		}
		args[i] = v
	}

	result, err := callBuiltin(b.FunctionName, args)
	if err != nil {
		return Signal{}, err
	}
	store.Set(b.LocalName, b.GlobalIndex, result)
	return NoneSignal(), nil
}

func callBuiltin(name string, args []Value) (Value, error) {
	switch strings.ToUpper(name) {
	case "UPPER":
		return Str(strings.ToUpper(arg(args, 0).asString())), nil
	case "LOWER":
		return Str(strings.ToLower(arg(args, 0).asString())), nil
	case "TRIM":
		return Str(strings.TrimSpace(arg(args, 0).asString())), nil
	case "CONCAT":
		var b strings.Builder
		for _, a := range args {
			b.WriteString(a.asString())
		}
		return Str(b.String()), nil
	case "LEN":
		return Int(int64(arg(args, 0).length())), nil
	case "CONTAINS":
		return Bool(strings.Contains(arg(args, 0).asString(), arg(args, 1).asString())), nil
	case "COUNT":
		if list, ok := arg(args, 0).Data.([]record.Data); ok {
			return Int(int64(len(list))), nil
		}
		return Int(0), nil
	default:
		return Value{}, apperr.BadInputf("Error: unknown function %q", name)
	}
}

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Undefined()
}

func valueToAny(v Value) any {
	switch v.Kind {
	case KindBoolean:
		return v.Bool
	case KindInteger:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindData:
		return v.Data
	default:
		return nil
	}
}

func anyToValue(v any) Value {
	switch t := v.(type) {
	case bool:
		return Bool(t)
	case int64:
		return Int(t)
	case float64:
		return Float(t)
	case string:
		return Str(t)
	case nil:
		return Null()
	default:
		return Data(t)
	}
}

func (ip *Interpreter) evalUpdate(b Block, store *DefinitionStore, saves map[string]*pendingSave) (Signal, error) {
	src, ok := store.GetRefIndex(b.RefVar, b.GlobalIndex)
	if !ok || src.Kind != KindData {
		return Signal{}, apperr.BadInputf("Error: update references an undefined sequence")
	}
	list, _ := src.Data.([]record.Data)

	for i, d := range list {
		matched, err := matchFilters(toFilters(b.Cond), d, store, b.GlobalIndex)
		if err != nil {
			return Signal{}, err
		}
		if !matched {
			continue
		}
		updated := d
		for _, set := range b.SetOps {
			v, err := ResolveOperations(set.Operations, store, b.GlobalIndex)
			if err != nil {
				return Signal{}, err
			}
			updated = setPairValue(updated, set.StructureID, v.asString())
		}
		list[i] = updated
	}

	store.Set(b.LocalName, b.GlobalIndex, Data(list))
	if b.Save {
		saves[b.RefCol] = &pendingSave{collectionID: b.RefCol, data: list}
	}
	return NoneSignal(), nil
}

func (ip *Interpreter) evalCreate(b Block, store *DefinitionStore, saves map[string]*pendingSave) (Signal, error) {
	existing, err := ip.Host.FetchData(b.RefCol)
	if err != nil {
		return Signal{}, err
	}

	var pairs []record.DataPair
	for _, add := range b.AddOps {
		v, err := ResolveOperations(add.Operations, store, b.GlobalIndex)
		if err != nil {
			return Signal{}, err
		}
		pairs = append(pairs, record.DataPair{StructureID: add.StructureID, Value: v.asString()})
	}

	created := record.New("", b.RefCol, false, pairs)
	all := append(existing, created)

	store.Set(b.LocalName, b.GlobalIndex, Data(created))
	if b.Save {
		saves[b.RefCol] = &pendingSave{collectionID: b.RefCol, data: all}
	}
	return NoneSignal(), nil
}

func setPairValue(d record.Data, structureID, value string) record.Data {
	for i, p := range d.Pairs {
		if p.StructureID == structureID {
			d.Pairs[i].Value = value
			return d
		}
	}
	d.Pairs = append(d.Pairs, record.DataPair{StructureID: structureID, Value: value})
	return d
}

func toFilters(conds []Condition) []Filter {
	filters := make([]Filter, len(conds))
	for i, c := range conds {
		filters[i] = Filter{RefProperty: c.Left.Data, Operator: c.Operator, Value: c.Right, Not: c.Not, Next: c.Next}
	}
	return filters
}
