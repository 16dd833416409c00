package route

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/codec"
	"ixode.dev/core/internal/constraint"
	"ixode.dev/core/internal/flow"
)

// RouteSeparator is the level-1 delimiter between routes in a project's
// route file (spec §6).
const RouteSeparator = "=============== DEFINE ROUTE ==============="

// This file implements the KDL-like line format spec §6 sketches for one
// route. The block lines beyond FETCH/FILTER/UPDATE aren't given in full
// by the spec; the shapes below extend the same style consistently:
//
//	KIND (global_index,block_index) [fields...] extra...
//
// A RefData serialises as "data:refvar(0|1):rtype". A Condition
// serialises as "left|right|operator|not(0|1)|next" and an Operation as
// "left|right|operator|next", lists of them joined by '>'. A Filter
// serialises as "ref_var|ref_property|operator|value|not|next".
// A FieldAssignment serialises as "structure_id=op1>op2", lists of them
// joined by ';'.

func encodeRefData(r flow.RefData) string {
	refVar := "0"
	if r.RefVar {
		refVar = "1"
	}
	return r.Data + ":" + refVar + ":" + string(r.Rtype)
}

func decodeRefData(s string) (flow.RefData, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return flow.RefData{}, apperr.BadInputf("Error: malformed ref_data %q", s)
	}
	return flow.RefData{Data: parts[0], RefVar: parts[1] == "1", Rtype: flow.ValueKind(parts[2])}, nil
}

func encodeConditions(conds []flow.Condition) string {
	parts := make([]string, len(conds))
	for i, c := range conds {
		not := "0"
		if c.Not {
			not = "1"
		}
		parts[i] = strings.Join([]string{
			encodeRefData(c.Left), encodeRefData(c.Right), string(c.Operator), not, string(c.Next),
		}, "|")
	}
	return strings.Join(parts, ">")
}

func decodeConditions(s string) ([]flow.Condition, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []flow.Condition
	for _, item := range strings.Split(s, ">") {
		fields := strings.Split(item, "|")
		if len(fields) != 5 {
			return nil, apperr.BadInputf("Error: malformed condition %q", item)
		}
		left, err := decodeRefData(fields[0])
		if err != nil {
			return nil, err
		}
		right, err := decodeRefData(fields[1])
		if err != nil {
			return nil, err
		}
		out = append(out, flow.Condition{
			Left: left, Right: right, Operator: flow.ConditionType(fields[2]),
			Not: fields[3] == "1", Next: flow.NextConditionType(fields[4]),
		})
	}
	return out, nil
}

func encodeOperations(ops []flow.Operation) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = strings.Join([]string{
			encodeRefData(o.Left), encodeRefData(o.Right), string(o.Operator), string(o.Next),
		}, "|")
	}
	return strings.Join(parts, ">")
}

func decodeOperations(s string) ([]flow.Operation, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []flow.Operation
	for _, item := range strings.Split(s, ">") {
		fields := strings.Split(item, "|")
		if len(fields) != 4 {
			return nil, apperr.BadInputf("Error: malformed operation %q", item)
		}
		left, err := decodeRefData(fields[0])
		if err != nil {
			return nil, err
		}
		right, err := decodeRefData(fields[1])
		if err != nil {
			return nil, err
		}
		out = append(out, flow.Operation{
			Left: left, Right: right, Operator: flow.OperationType(fields[2]), Next: flow.NextConditionType(fields[3]),
		})
	}
	return out, nil
}

func encodeFilters(filters []flow.Filter) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		not := "0"
		if f.Not {
			not = "1"
		}
		parts[i] = strings.Join([]string{
			f.RefVar, f.RefProperty, string(f.Operator), encodeRefData(f.Value), not, string(f.Next),
		}, "|")
	}
	return strings.Join(parts, ">")
}

func decodeFilters(s string) ([]flow.Filter, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []flow.Filter
	for _, item := range strings.Split(s, ">") {
		fields := strings.Split(item, "|")
		if len(fields) != 6 {
			return nil, apperr.BadInputf("Error: malformed filter %q", item)
		}
		value, err := decodeRefData(fields[3])
		if err != nil {
			return nil, err
		}
		out = append(out, flow.Filter{
			RefVar: fields[0], RefProperty: fields[1], Operator: flow.ConditionType(fields[2]),
			Value: value, Not: fields[4] == "1", Next: flow.NextConditionType(fields[5]),
		})
	}
	return out, nil
}

func encodeAssignments(list []flow.FieldAssignment) string {
	parts := make([]string, len(list))
	for i, a := range list {
		parts[i] = a.StructureID + "=" + encodeOperations(a.Operations)
	}
	return strings.Join(parts, ";")
}

func decodeAssignments(s string) ([]flow.FieldAssignment, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []flow.FieldAssignment
	for _, item := range strings.Split(s, ";") {
		kv := strings.SplitN(item, "=", 2)
		if len(kv) != 2 {
			return nil, apperr.BadInputf("Error: malformed field assignment %q", item)
		}
		ops, err := decodeOperations(kv[1])
		if err != nil {
			return nil, err
		}
		out = append(out, flow.FieldAssignment{StructureID: kv[0], Operations: ops})
	}
	return out, nil
}

// StringifyBlock renders one flow.Block as a KDL-like line.
func StringifyBlock(b flow.Block) string {
	head := fmt.Sprintf("%s (%d,%d)", b.Kind, b.GlobalIndex, b.BlockIndex)
	switch b.Kind {
	case flow.BlockFetch:
		return fmt.Sprintf("%s [%s,%s]", head, b.LocalName, b.RefCol)
	case flow.BlockFilter:
		return fmt.Sprintf("%s [%s,%s,%s] %s", head, b.LocalName, b.RefVar, b.RefProperty, encodeFilters(b.Filters))
	case flow.BlockAssignment:
		return fmt.Sprintf("%s [%s] ops=%s", head, b.LocalName, encodeOperations(b.Operations))
	case flow.BlockTemplate:
		return fmt.Sprintf("%s [%s] template=%s", head, b.LocalName, codec.EscapeNewline(b.Template))
	case flow.BlockObject:
		keys := make([]string, 0, len(b.ObjectFields))
		for k := range b.ObjectFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]string, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, k+"="+encodeRefData(b.ObjectFields[k]))
		}
		return fmt.Sprintf("%s [%s] fields=%s", head, b.LocalName, strings.Join(fields, ">"))
	case flow.BlockProperty:
		return fmt.Sprintf("%s [%s,%s,%s]", head, b.LocalName, b.RefVar, b.RefProperty)
	case flow.BlockCondition:
		failOnFalse := "0"
		if b.FailOnFalse {
			failOnFalse = "1"
		}
		onTrue := string(b.OnTrue)
		if onTrue == "" {
			onTrue = "NONE"
		}
		return fmt.Sprintf("%s [%s] skip=%d fail_on_false=%s on_true=%s fail=%d,%s conditions=%s",
			head, b.LocalName, b.SkipCount, failOnFalse, onTrue, b.FailStatus, codec.EscapeNewline(b.FailMessage), encodeConditions(b.Conditions))
	case flow.BlockLoop:
		return fmt.Sprintf("%s [%s] start=%d end=%d bound=%s", head, b.LocalName, b.LoopStart, b.LoopEnd, encodeRefData(b.LoopBound))
	case flow.BlockFunction:
		args := make([]string, len(b.FunctionArgs))
		for i, a := range b.FunctionArgs {
			args[i] = encodeRefData(a)
		}
		return fmt.Sprintf("%s [%s] name=%s args=%s", head, b.LocalName, b.FunctionName, strings.Join(args, ">"))
	case flow.BlockUpdate:
		save := "0"
		if b.Save {
			save = "1"
		}
		return fmt.Sprintf("%s [%s,%s] save=%s set=%s cond=%s", head, b.LocalName, b.RefCol, save, encodeAssignments(b.SetOps), encodeConditions(b.Cond))
	case flow.BlockCreate:
		save := "0"
		if b.Save {
			save = "1"
		}
		return fmt.Sprintf("%s [%s,%s] save=%s add=%s", head, b.LocalName, b.RefCol, save, encodeAssignments(b.AddOps))
	case flow.BlockFail:
		return fmt.Sprintf("%s status=%d message=%s", head, b.FailStatus, codec.EscapeNewline(b.FailMessage))
	default:
		return head
	}
}

func StringifyFlow(program flow.Program) string {
	var b strings.Builder
	for _, block := range program.Blocks {
		b.WriteString("\n")
		b.WriteString(StringifyBlock(block))
	}
	return b.String()
}

// ParseBlock parses one KDL-like block line. Unknown kinds return a
// recoverable error the caller (ParseFlow) logs and skips (spec §6:
// "unknown block types produce a recoverable error").
func ParseBlock(line string) (flow.Block, error) {
	line = strings.TrimSpace(line)
	kindSep := strings.IndexAny(line, " ")
	if kindSep < 0 {
		return flow.Block{}, apperr.BadInputf("Error: malformed block line %q", line)
	}
	kind := flow.BlockKind(line[:kindSep])
	rest := line[kindSep+1:]

	idxStart := strings.Index(rest, "(")
	idxEnd := strings.Index(rest, ")")
	if idxStart < 0 || idxEnd < 0 || idxEnd < idxStart {
		return flow.Block{}, apperr.BadInputf("Error: malformed block indexes %q", line)
	}
	idxFields := strings.Split(rest[idxStart+1:idxEnd], ",")
	if len(idxFields) != 2 {
		return flow.Block{}, apperr.BadInputf("Error: malformed block indexes %q", line)
	}
	globalIndex, err := strconv.Atoi(strings.TrimSpace(idxFields[0]))
	if err != nil {
		return flow.Block{}, apperr.BadInputf("Error: malformed global_index %q", line)
	}
	blockIndex, err := strconv.Atoi(strings.TrimSpace(idxFields[1]))
	if err != nil {
		return flow.Block{}, apperr.BadInputf("Error: malformed block_index %q", line)
	}

	b := flow.Block{GlobalIndex: globalIndex, BlockIndex: blockIndex, Kind: kind}
	remainder := rest[idxEnd+1:]

	refStart := strings.Index(remainder, "[")
	refEnd := strings.Index(remainder, "]")
	var refFields []string
	tail := remainder
	if refStart >= 0 && refEnd > refStart {
		refFields = strings.Split(remainder[refStart+1:refEnd], ",")
		tail = remainder[refEnd+1:]
	}
	tail = strings.TrimSpace(tail)
	kv := parseKV(tail)

	switch kind {
	case flow.BlockFetch:
		if len(refFields) != 2 {
			return flow.Block{}, apperr.BadInputf("Error: malformed FETCH refs %q", line)
		}
		b.LocalName, b.RefCol = refFields[0], refFields[1]
	case flow.BlockFilter:
		if len(refFields) != 3 {
			return flow.Block{}, apperr.BadInputf("Error: malformed FILTER refs %q", line)
		}
		b.LocalName, b.RefVar, b.RefProperty = refFields[0], refFields[1], refFields[2]
		b.Filters, err = decodeFilters(tail)
	case flow.BlockAssignment:
		b.LocalName = first(refFields)
		b.Operations, err = decodeOperations(kv["ops"])
	case flow.BlockTemplate:
		b.LocalName = first(refFields)
		b.Template = codec.UnescapeNewline(kv["template"])
	case flow.BlockObject:
		b.LocalName = first(refFields)
		b.ObjectFields = map[string]flow.RefData{}
		if kv["fields"] != "" {
			for _, item := range strings.Split(kv["fields"], ">") {
				pair := strings.SplitN(item, "=", 2)
				if len(pair) != 2 {
					continue
				}
				var rd flow.RefData
				rd, err = decodeRefData(pair[1])
				if err != nil {
					break
				}
				b.ObjectFields[pair[0]] = rd
			}
		}
	case flow.BlockProperty:
		if len(refFields) != 3 {
			return flow.Block{}, apperr.BadInputf("Error: malformed PROPERTY refs %q", line)
		}
		b.LocalName, b.RefVar, b.RefProperty = refFields[0], refFields[1], refFields[2]
	case flow.BlockCondition:
		b.LocalName = first(refFields)
		b.SkipCount, _ = strconv.Atoi(kv["skip"])
		b.FailOnFalse = kv["fail_on_false"] == "1"
		switch kv["on_true"] {
		case "BREAK":
			b.OnTrue = flow.LoopActionBreak
		case "CONTINUE":
			b.OnTrue = flow.LoopActionContinue
		}
		if fail := kv["fail"]; fail != "" {
			parts := strings.SplitN(fail, ",", 2)
			b.FailStatus, _ = strconv.Atoi(parts[0])
			if len(parts) > 1 {
				b.FailMessage = codec.UnescapeNewline(parts[1])
			}
		}
		b.Conditions, err = decodeConditions(kv["conditions"])
	case flow.BlockLoop:
		b.LocalName = first(refFields)
		b.LoopStart, _ = strconv.Atoi(kv["start"])
		b.LoopEnd, _ = strconv.Atoi(kv["end"])
		b.LoopBound, err = decodeRefData(kv["bound"])
	case flow.BlockFunction:
		b.LocalName = first(refFields)
		b.FunctionName = kv["name"]
		if kv["args"] != "" {
			for _, item := range strings.Split(kv["args"], ">") {
				var rd flow.RefData
				rd, err = decodeRefData(item)
				if err != nil {
					break
				}
				b.FunctionArgs = append(b.FunctionArgs, rd)
			}
		}
	case flow.BlockUpdate:
		if len(refFields) != 2 {
			return flow.Block{}, apperr.BadInputf("Error: malformed UPDATE refs %q", line)
		}
		b.LocalName, b.RefCol = refFields[0], refFields[1]
		b.Save = kv["save"] == "1"
		b.SetOps, err = decodeAssignments(kv["set"])
		if err == nil {
			b.Cond, err = decodeConditions(kv["cond"])
		}
	case flow.BlockCreate:
		if len(refFields) != 2 {
			return flow.Block{}, apperr.BadInputf("Error: malformed CREATE refs %q", line)
		}
		b.LocalName, b.RefCol = refFields[0], refFields[1]
		b.Save = kv["save"] == "1"
		b.AddOps, err = decodeAssignments(kv["add"])
	case flow.BlockFail:
		b.FailStatus, _ = strconv.Atoi(kv["status"])
		b.FailMessage = codec.UnescapeNewline(kv["message"])
	default:
		return flow.Block{}, apperr.BadInputf("Error: unknown block kind %q", kind)
	}

	if err != nil {
		return flow.Block{}, err
	}
	return b, nil
}

func first(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// parseKV splits "key=value key2=value2" space-separated tail segments,
// tolerating values that themselves contain '=' (operations/assignments
// do) by only splitting on the first '='.
func parseKV(tail string) map[string]string {
	out := map[string]string{}
	if tail == "" {
		return out
	}
	for _, token := range splitKVTokens(tail) {
		kv := strings.SplitN(token, "=", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}

// splitKVTokens splits tail into "key=value" tokens. A new token starts at
// each space that is immediately followed by a bare identifier and '=',
// the only shape key names take in this format, rather than any space,
// since values may contain spaces.
func splitKVTokens(tail string) []string {
	var tokens []string
	start := 0
	for i := 0; i < len(tail); i++ {
		if tail[i] != ' ' {
			continue
		}
		rest := tail[i+1:]
		eq := strings.IndexByte(rest, '=')
		if eq < 0 {
			continue
		}
		key := rest[:eq]
		if key == "" || strings.ContainsAny(key, " >|:=") {
			continue
		}
		tokens = append(tokens, tail[start:i])
		start = i + 1
	}
	tokens = append(tokens, tail[start:])
	return tokens
}

// ParseFlow parses every non-blank line after "START FLOW" as one block.
// A malformed line is logged (by the caller) and skipped, never aborting
// the rest of the flow (spec §6 tolerant-parsing rule).
func ParseFlow(text string, onError func(error)) flow.Program {
	var blocks []flow.Block
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b, err := ParseBlock(line)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		blocks = append(blocks, b)
	}
	return flow.NewProgram(blocks)
}

// StringifyRoute renders one RouteComponent in the KDL-like form (spec
// §6).
func StringifyRoute(r RouteComponent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INIT ROUTE [%s,%s,%s]", r.ProjectID, r.RouteID, r.RoutePath)
	if r.AuthJWT != nil {
		active := "0"
		if r.AuthJWT.Active {
			active = "1"
		}
		fmt.Fprintf(&b, "\n\nDEFINE auth_jwt [%s,%s,%s]", active, r.AuthJWT.Field, r.AuthJWT.RefCol)
	}
	b.WriteString("\n\n")
	for i, bd := range r.Body {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "ADD BODY pair [%s,%s]", bd.ID, bd.Dtype)
	}
	if r.Params != nil {
		fmt.Fprintf(&b, "\n\nDEFINE PARAMS [%s]", r.Params.Delimiter)
		for _, p := range r.Params.Pairs {
			fmt.Fprintf(&b, "\nADD PARAMS pair [%s,%s]", p.ID, p.Dtype)
		}
	}
	b.WriteString("\nSTART FLOW")
	b.WriteString(StringifyFlow(r.Flow))
	return b.String()
}

// StringifyRoutes joins every route with RouteSeparator (spec §6).
func StringifyRoutes(list []RouteComponent) string {
	parts := make([]string, len(list))
	for i, r := range list {
		parts[i] = StringifyRoute(r)
	}
	return strings.Join(parts, "\n"+RouteSeparator+"\n")
}

// ParseRoute parses one route's KDL-like text. Ported from
// RouteComponent::from_string: split at "INIT ROUTE [", then at
// "START FLOW", tolerant of a malformed auth_jwt/body/param line (each
// logged and skipped rather than failing the whole route).
func ParseRoute(text string, catalog *constraint.Catalog, onError func(error)) (RouteComponent, error) {
	afterInit := strings.SplitN(text, "INIT ROUTE [", 2)
	if len(afterInit) < 2 {
		return RouteComponent{}, apperr.BadInputf("Error: Invalid route format (at the beginning of INIT ROUTE)")
	}
	headTail := strings.SplitN(afterInit[1], "]", 2)
	if len(headTail) < 2 {
		return RouteComponent{}, apperr.BadInputf("Error: Invalid route format (at INIT ROUTE)")
	}
	head := strings.Split(headTail[0], ",")
	if len(head) < 3 {
		return RouteComponent{}, apperr.BadInputf("Error: Invalid route format (in INIT ROUTE)")
	}
	projectID, routeID, routePath := head[0], head[1], head[2]

	flowSplit := strings.SplitN(text, "START FLOW", 2)
	if len(flowSplit) < 2 {
		return RouteComponent{}, apperr.BadInputf("Error: Invalid route format (at the beginning of START FLOW)")
	}
	program := ParseFlow(flowSplit[1], onError)

	var authJWT *AuthJWT
	var body []BodyData
	var params *ParamData
	var paramPairs []BodyData

	for _, line := range strings.Split(flowSplit[0], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "DEFINE auth_jwt"):
			aj, err := parseAuthJWTLine(line, catalog)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			authJWT = &aj
		case strings.HasPrefix(line, "ADD BODY pair"):
			bd, err := parseBodyLine(line, "ADD BODY pair", catalog)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			body = append(body, bd)
		case strings.HasPrefix(line, "DEFINE PARAMS"):
			delim, err := parseBracketed(line, "DEFINE PARAMS")
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			p, err := NewParamData(first(delim), catalog)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			params = &p
		case strings.HasPrefix(line, "ADD PARAMS pair"):
			pd, err := parseBodyLine(line, "ADD PARAMS pair", catalog)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			paramPairs = append(paramPairs, pd)
		}
	}
	if params != nil {
		params.Pairs = paramPairs
	}

	_, r, err := Create(nil, catalog, routeID, routePath, projectID, program)
	if err != nil {
		return RouteComponent{}, err
	}
	r.AuthJWT = authJWT
	r.Body = body
	r.Params = params
	return r, nil
}

func parseBracketed(line, prefix string) ([]string, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	start := strings.Index(rest, "[")
	end := strings.Index(rest, "]")
	if start < 0 || end < start {
		return nil, apperr.BadInputf("Error: Invalid route format -> malformed %q line", prefix)
	}
	return strings.Split(rest[start+1:end], ","), nil
}

func parseAuthJWTLine(line string, catalog *constraint.Catalog) (AuthJWT, error) {
	fields, err := parseBracketed(line, "DEFINE auth_jwt")
	if err != nil {
		return AuthJWT{}, err
	}
	if len(fields) != 3 {
		return AuthJWT{}, apperr.BadInputf("Error: Invalid route format -> malformed auth_jwt line")
	}
	return NewAuthJWT(fields[0] == "1", fields[1], fields[2], catalog)
}

func parseBodyLine(line, prefix string, catalog *constraint.Catalog) (BodyData, error) {
	fields, err := parseBracketed(line, prefix)
	if err != nil {
		return BodyData{}, err
	}
	if len(fields) != 2 {
		return BodyData{}, apperr.BadInputf("Error: Invalid route format -> malformed %q line", prefix)
	}
	return NewBodyData(fields[0], fields[1], catalog)
}

// ParseRoutes splits text on RouteSeparator and parses each fragment,
// skipping (with onError) any route that fails to parse rather than
// aborting the whole file (spec §6).
func ParseRoutes(text string, catalog *constraint.Catalog, onError func(error)) []RouteComponent {
	var out []RouteComponent
	for _, fragment := range strings.Split(text, RouteSeparator) {
		if len(strings.TrimSpace(fragment)) < 3 {
			continue
		}
		r, err := ParseRoute(fragment, catalog, onError)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
