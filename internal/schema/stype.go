package schema

import "strings"

// Type is the stringly-typed sum type a Structure's stype field encodes
// (spec §9 design note): a closed set of primitive kinds plus a CUSTOM(name)
// escape hatch for operator-defined nested shapes. Parsing an unknown name
// yields CUSTOM rather than failing, matching the source's tolerant
// behaviour.
type Type struct {
	Kind   string
	Custom string
}

const (
	TypeText     = "TEXT"
	TypeEmail    = "EMAIL"
	TypePassword = "PASSWORD"
	TypeMarkdown = "MARKDOWN"
	TypeInteger  = "INTEGER"
	TypeFloat    = "FLOAT"
	TypeEnum     = "ENUM"
	TypeDate     = "DATE"
	TypeDatetime = "DATETIME"
	TypeMedia    = "MEDIA"
	TypeBoolean  = "BOOLEAN"
	TypeUID      = "UID"
	TypeJSON     = "JSON"
	TypeCustom   = "CUSTOM"
)

var knownKinds = map[string]bool{
	TypeText: true, TypeEmail: true, TypePassword: true, TypeMarkdown: true,
	TypeInteger: true, TypeFloat: true, TypeEnum: true, TypeDate: true,
	TypeDatetime: true, TypeMedia: true, TypeBoolean: true, TypeUID: true,
	TypeJSON: true,
}

// ParseType accepts any of the closed-set names, or "CUSTOM(name)", or an
// arbitrary unrecognised name which becomes CUSTOM(name).
func ParseType(s string) Type {
	if strings.HasPrefix(s, TypeCustom+"(") && strings.HasSuffix(s, ")") {
		return Type{Kind: TypeCustom, Custom: s[len(TypeCustom)+1 : len(s)-1]}
	}
	if knownKinds[s] {
		return Type{Kind: s}
	}
	return Type{Kind: TypeCustom, Custom: s}
}

func (t Type) String() string {
	if t.Kind == TypeCustom {
		return TypeCustom + "(" + t.Custom + ")"
	}
	return t.Kind
}
