package schema

import (
	"strings"

	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/codec"
	"ixode.dev/core/internal/constraint"
)

// CustomStructure is a named grouping of Structures, nested one level
// (spec §3).
type CustomStructure struct {
	ID          string
	Name        string
	Description string
	Structures  []Structure
}

func CreateCustomStructure(list []CustomStructure, catalog *constraint.Catalog, id, name, desc string) ([]CustomStructure, CustomStructure, error) {
	if ExistsCustomStructure(list, id) {
		return list, CustomStructure{}, apperr.Conflictf("Error: custom_structure id already in use")
	}
	vid, err := catalog.Validate("custom_structure", "id", id)
	if err != nil {
		return list, CustomStructure{}, err
	}
	vname, err := catalog.Validate("custom_structure", "name", name)
	if err != nil {
		return list, CustomStructure{}, err
	}
	vdesc, err := catalog.Validate("custom_structure", "description", desc)
	if err != nil {
		return list, CustomStructure{}, err
	}
	cs := CustomStructure{ID: vid, Name: vname, Description: vdesc}
	return append(list, cs), cs, nil
}

func ExistsCustomStructure(list []CustomStructure, id string) bool {
	_, ok := GetCustomStructure(list, id)
	return ok
}

func GetCustomStructure(list []CustomStructure, id string) (CustomStructure, bool) {
	for _, cs := range list {
		if strings.EqualFold(cs.ID, id) {
			return cs, true
		}
	}
	return CustomStructure{}, false
}

func indexOfCustomStructure(list []CustomStructure, id string) int {
	for i, cs := range list {
		if strings.EqualFold(cs.ID, id) {
			return i
		}
	}
	return -1
}

func UpdateCustomStructureID(list []CustomStructure, oldID, newID string, catalog *constraint.Catalog) ([]CustomStructure, error) {
	idx := indexOfCustomStructure(list, oldID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no custom_structure with this id found")
	}
	if ExistsCustomStructure(list, newID) {
		return list, apperr.Conflictf("Error: custom_structure id already in use")
	}
	v, err := catalog.Validate("custom_structure", "id", newID)
	if err != nil {
		return list, err
	}
	list[idx].ID = v
	return list, nil
}

func SetStructuresOf(list []CustomStructure, id string, structures []Structure) ([]CustomStructure, error) {
	idx := indexOfCustomStructure(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no custom_structure with this id found")
	}
	list[idx].Structures = structures
	return list, nil
}

func DeleteCustomStructure(list []CustomStructure, id string) ([]CustomStructure, error) {
	idx := indexOfCustomStructure(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no custom_structure with this id found")
	}
	return append(list[:idx], list[idx+1:]...), nil
}

// StringifyCustomStructure renders id|name|desc|STRUCT1%STRUCT2… (the
// nested structures reuse the '%' delimiter one level deeper, scoped
// because this whole segment is itself split out by '#' at the Collection
// level before being parsed).
func StringifyCustomStructure(cs CustomStructure) string {
	return strings.Join([]string{
		cs.ID,
		codec.EscapeNewline(cs.Name),
		codec.EscapeNewline(cs.Description),
		StringifyStructures(cs.Structures),
	}, "|")
}

func ParseCustomStructure(text string) (CustomStructure, error) {
	fields := strings.SplitN(text, "|", 4)
	if len(fields) != 4 {
		return CustomStructure{}, apperr.BadInputf("Error: malformed custom_structure record")
	}
	structures, err := ParseStructures(fields[3])
	if err != nil {
		return CustomStructure{}, err
	}
	return CustomStructure{
		ID:          fields[0],
		Name:        codec.UnescapeNewline(fields[1]),
		Description: codec.UnescapeNewline(fields[2]),
		Structures:  structures,
	}, nil
}

// StringifyCustomStructures joins at level 4 ('#').
func StringifyCustomStructures(list []CustomStructure) string {
	parts := make([]string, len(list))
	for i, cs := range list {
		parts[i] = StringifyCustomStructure(cs)
	}
	return strings.Join(parts, "#")
}

func ParseCustomStructures(text string) ([]CustomStructure, error) {
	if text == "" {
		return nil, nil
	}
	parts := strings.Split(text, "#")
	out := make([]CustomStructure, 0, len(parts))
	for _, p := range parts {
		cs, err := ParseCustomStructure(p)
		if err != nil {
			continue
		}
		out = append(out, cs)
	}
	return out, nil
}
