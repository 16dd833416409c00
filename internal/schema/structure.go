package schema

import (
	"regexp"
	"strconv"
	"strings"

	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/codec"
	"ixode.dev/core/internal/constraint"
)

// Structure is the declaration of one field in a Collection (spec §3).
type Structure struct {
	ID          string
	Name        string
	Description string
	Type        Type
	Default     string
	Min         int
	Max         int
	Encrypted   bool
	Unique      bool
	Regex       string
	Array       bool
	Required    bool
}

// StructureBuilder constructs a Structure in a local scope (spec §9
// design note: replaces the source's placeholder-id "test;" pattern). No
// partially-built Structure is ever observable outside Build.
type StructureBuilder struct {
	s       Structure
	catalog *constraint.Catalog
	err     error
}

func NewStructureBuilder(catalog *constraint.Catalog) *StructureBuilder {
	return &StructureBuilder{catalog: catalog, s: Structure{Min: 0, Max: 100}}
}

func (b *StructureBuilder) fail(err error) *StructureBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

func (b *StructureBuilder) ID(id string) *StructureBuilder {
	if b.err != nil {
		return b
	}
	v, err := b.catalog.Validate("structure", "id", id)
	if err != nil {
		return b.fail(err)
	}
	b.s.ID = v
	return b
}

func (b *StructureBuilder) Name(name string) *StructureBuilder {
	if b.err != nil {
		return b
	}
	v, err := b.catalog.Validate("structure", "name", name)
	if err != nil {
		return b.fail(err)
	}
	b.s.Name = v
	return b
}

func (b *StructureBuilder) Description(desc string) *StructureBuilder {
	if b.err != nil {
		return b
	}
	v, err := b.catalog.Validate("structure", "description", desc)
	if err != nil {
		return b.fail(err)
	}
	b.s.Description = v
	return b
}

func (b *StructureBuilder) StypeText(stype string) *StructureBuilder {
	if b.err != nil {
		return b
	}
	b.s.Type = ParseType(stype)
	return b
}

func (b *StructureBuilder) MinMax(min, max int) *StructureBuilder {
	if b.err != nil {
		return b
	}
	if max < min {
		return b.fail(apperr.BadInputf("Error: max must be >= min"))
	}
	b.s.Min, b.s.Max = min, max
	return b
}

func (b *StructureBuilder) Regex(pattern string) *StructureBuilder {
	if b.err != nil {
		return b
	}
	if pattern != "" {
		if _, err := regexp.Compile(pattern); err != nil {
			return b.fail(apperr.BadInputf("Error: regex does not compile"))
		}
	}
	b.s.Regex = pattern
	return b
}

func (b *StructureBuilder) Flags(encrypted, unique, array, required bool) *StructureBuilder {
	if b.err != nil {
		return b
	}
	b.s.Encrypted, b.s.Unique, b.s.Array, b.s.Required = encrypted, unique, array, required
	return b
}

func (b *StructureBuilder) Default(def string) *StructureBuilder {
	if b.err != nil {
		return b
	}
	if err := validateDefault(b.s, def); err != nil {
		return b.fail(err)
	}
	b.s.Default = def
	return b
}

func (b *StructureBuilder) Build() (Structure, error) {
	if b.err != nil {
		return Structure{}, b.err
	}
	if b.s.ID == "" {
		return Structure{}, apperr.BadInputf("Error: structure id is required")
	}
	return b.s, nil
}

// validateDefault re-validates the default against min, max, regex and
// stype, per element when the field is an array (spec §4.D).
func validateDefault(s Structure, def string) error {
	if def == "" {
		return nil
	}
	elements := []string{def}
	if s.Array {
		elements = strings.Split(def, ",")
	}
	for _, el := range elements {
		if l := len([]rune(el)); l < s.Min || l > s.Max {
			return apperr.BadInputf("Error: default element out of bounds")
		}
		if s.Regex != "" {
			re, err := regexp.Compile(s.Regex)
			if err != nil {
				return apperr.BadInputf("Error: regex does not compile")
			}
			if !re.MatchString(el) {
				return apperr.BadInputf("Error: default does not match regex")
			}
		}
		if err := checkStype(s.Type, el); err != nil {
			return err
		}
	}
	return nil
}

func checkStype(t Type, value string) error {
	switch t.Kind {
	case TypeInteger:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return apperr.BadInputf("Error: default is not an integer")
		}
	case TypeFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return apperr.BadInputf("Error: default is not a float")
		}
	case TypeBoolean:
		if strings.ToLower(value) != "true" && strings.ToLower(value) != "false" {
			return apperr.BadInputf("Error: default is not a boolean")
		}
	}
	return nil
}

// CreateStructure builds a Structure via the builder and appends it to
// list only once every field validates.
func CreateStructure(list []Structure, catalog *constraint.Catalog, id, name, desc, stype, def string, min, max int, regex string, encrypted, unique, array, required bool) ([]Structure, Structure, error) {
	if ExistsStructure(list, id) {
		return list, Structure{}, apperr.Conflictf("Error: structure id already in use")
	}
	s, err := NewStructureBuilder(catalog).
		ID(id).Name(name).Description(desc).StypeText(stype).
		MinMax(min, max).Regex(regex).Flags(encrypted, unique, array, required).
		Default(def).
		Build()
	if err != nil {
		return list, Structure{}, err
	}
	return append(list, s), s, nil
}

func ExistsStructure(list []Structure, id string) bool {
	_, ok := GetStructure(list, id)
	return ok
}

// GetStructure performs a case-insensitive scan by id, matching the
// source's Structure::get behaviour.
func GetStructure(list []Structure, id string) (Structure, bool) {
	for _, s := range list {
		if strings.EqualFold(s.ID, id) {
			return s, true
		}
	}
	return Structure{}, false
}

func indexOfStructure(list []Structure, id string) int {
	for i, s := range list {
		if strings.EqualFold(s.ID, id) {
			return i
		}
	}
	return -1
}

// UpdateStructureID renames a structure's id, rejecting collisions. The
// caller is responsible for cascading the rename into DataPair.structure_id
// across the owning Collection's Data (spec §3 lifecycle summary); that
// cascade lives in the reconciliation layer, not here, since Structure has
// no visibility into Data.
func UpdateStructureID(list []Structure, oldID, newID string, catalog *constraint.Catalog) ([]Structure, error) {
	idx := indexOfStructure(list, oldID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no structure with this id found")
	}
	if ExistsStructure(list, newID) {
		return list, apperr.Conflictf("Error: structure id already in use")
	}
	v, err := catalog.Validate("structure", "id", newID)
	if err != nil {
		return list, err
	}
	list[idx].ID = v
	return list, nil
}

func UpdateStructureName(list []Structure, id, name string, catalog *constraint.Catalog) ([]Structure, error) {
	idx := indexOfStructure(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no structure with this id found")
	}
	v, err := catalog.Validate("structure", "name", name)
	if err != nil {
		return list, err
	}
	list[idx].Name = v
	return list, nil
}

func UpdateStructureDescription(list []Structure, id, desc string, catalog *constraint.Catalog) ([]Structure, error) {
	idx := indexOfStructure(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no structure with this id found")
	}
	v, err := catalog.Validate("structure", "description", desc)
	if err != nil {
		return list, err
	}
	list[idx].Description = v
	return list, nil
}

func UpdateStructureType(list []Structure, id, stype string) ([]Structure, error) {
	idx := indexOfStructure(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no structure with this id found")
	}
	list[idx].Type = ParseType(stype)
	return list, nil
}

func UpdateStructureMinMax(list []Structure, id string, min, max int) ([]Structure, error) {
	idx := indexOfStructure(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no structure with this id found")
	}
	if max < min {
		return list, apperr.BadInputf("Error: max must be >= min")
	}
	list[idx].Min, list[idx].Max = min, max
	return list, nil
}

func UpdateStructureRegex(list []Structure, id, pattern string) ([]Structure, error) {
	idx := indexOfStructure(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no structure with this id found")
	}
	if pattern != "" {
		if _, err := regexp.Compile(pattern); err != nil {
			return list, apperr.BadInputf("Error: regex does not compile")
		}
	}
	list[idx].Regex = pattern
	return list, nil
}

func UpdateStructureDefault(list []Structure, id, def string) ([]Structure, error) {
	idx := indexOfStructure(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no structure with this id found")
	}
	if err := validateDefault(list[idx], def); err != nil {
		return list, err
	}
	list[idx].Default = def
	return list, nil
}

func UpdateStructureFlags(list []Structure, id string, encrypted, unique, array, required bool) ([]Structure, error) {
	idx := indexOfStructure(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no structure with this id found")
	}
	list[idx].Encrypted, list[idx].Unique, list[idx].Array, list[idx].Required = encrypted, unique, array, required
	return list, nil
}

func DeleteStructure(list []Structure, id string) ([]Structure, error) {
	idx := indexOfStructure(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no structure with this id found")
	}
	return append(list[:idx], list[idx+1:]...), nil
}

// StringifyStructure serialises one Structure at level-5 granularity:
// id|name|desc|stype|default|min|max|encrypted|unique|regex|array|required.
func StringifyStructure(s Structure) string {
	return strings.Join([]string{
		s.ID,
		codec.EscapeNewline(s.Name),
		codec.EscapeNewline(s.Description),
		s.Type.String(),
		codec.EscapeNewline(s.Default),
		strconv.Itoa(s.Min),
		strconv.Itoa(s.Max),
		strconv.FormatBool(s.Encrypted),
		strconv.FormatBool(s.Unique),
		codec.EscapeNewline(s.Regex),
		strconv.FormatBool(s.Array),
		strconv.FormatBool(s.Required),
	}, "|")
}

// ParseStructure is the inverse of StringifyStructure.
func ParseStructure(text string) (Structure, error) {
	fields := strings.Split(text, "|")
	if len(fields) != 12 {
		return Structure{}, apperr.BadInputf("Error: malformed structure record")
	}
	min, _ := strconv.Atoi(fields[5])
	max, _ := strconv.Atoi(fields[6])
	encrypted, _ := strconv.ParseBool(fields[7])
	unique, _ := strconv.ParseBool(fields[8])
	array, _ := strconv.ParseBool(fields[10])
	required, _ := strconv.ParseBool(fields[11])
	return Structure{
		ID:          fields[0],
		Name:        codec.UnescapeNewline(fields[1]),
		Description: codec.UnescapeNewline(fields[2]),
		Type:        ParseType(fields[3]),
		Default:     codec.UnescapeNewline(fields[4]),
		Min:         min,
		Max:         max,
		Encrypted:   encrypted,
		Unique:      unique,
		Regex:       codec.UnescapeNewline(fields[9]),
		Array:       array,
		Required:    required,
	}, nil
}

// StringifyStructures joins a Collection's structure list at level 4 ('%').
func StringifyStructures(list []Structure) string {
	parts := make([]string, len(list))
	for i, s := range list {
		parts[i] = StringifyStructure(s)
	}
	return strings.Join(parts, "%")
}

// ParseStructures is the inverse of StringifyStructures.
func ParseStructures(text string) ([]Structure, error) {
	if text == "" {
		return nil, nil
	}
	parts := strings.Split(text, "%")
	out := make([]Structure, 0, len(parts))
	for _, p := range parts {
		s, err := ParseStructure(p)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
