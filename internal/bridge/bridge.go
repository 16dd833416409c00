// Package bridge converts between a Collection's typed "raw pair tree" —
// the shape the external interface speaks — and a persisted record.Data,
// enforcing the Collection's structure-level constraints in both
// directions (spec §4.F).
package bridge

import (
	"regexp"
	"strconv"
	"strings"

	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/constraint"
	"ixode.dev/core/internal/record"
	"ixode.dev/core/internal/schema"
)

// RawPair is one top-level or nested field value as the external
// interface presents it, before it is validated into a DataPair.
type RawPair struct {
	ID    string
	Type  string
	Value string
}

// RawGroup is a nested CustomStructure's worth of pairs.
type RawGroup struct {
	CustomStructureID string
	Pairs             []RawPair
}

// Tree is the two-level rawpair tree spec §4.F describes.
type Tree struct {
	Pairs  []RawPair
	Groups []RawGroup
}

// RawToData enforces rules 1-4 of spec §4.F and returns a new record.Data.
// When update is true, existingID is reused instead of generating a fresh
// one (rule 5); the caller is expected to have already deleted the prior
// record in the same save cycle.
func RawToData(tree Tree, c schema.Collection, catalog *constraint.Catalog, allInCollection []record.Data, update bool, existingID string) (record.Data, error) {
	var pairs []record.DataPair

	for _, s := range c.Structures {
		raw, ok := findRaw(tree.Pairs, s.ID)
		value := ""
		if ok {
			value = raw.Value
		} else if s.Default != "" {
			value = s.Default
		} else if s.Required {
			return record.Data{}, apperr.BadInputf("Error: missing required field %s", s.ID)
		} else {
			continue
		}

		if ok && !typeCompatible(s.Type, raw.Type) {
			return record.Data{}, apperr.BadInputf("Error: field %s type mismatch", s.ID)
		}

		if err := validateElements(s, value); err != nil {
			return record.Data{}, err
		}

		if s.Unique {
			if err := checkUnique(allInCollection, s.ID, "", value); err != nil {
				return record.Data{}, err
			}
		}

		pair, err := record.NewDataPair(s.ID, "", value, s.Type.String(), catalog)
		if err != nil {
			return record.Data{}, err
		}
		pairs = append(pairs, pair)
	}

	for _, cs := range c.CustomStructures {
		group := findGroup(tree.Groups, cs.ID)
		for _, s := range cs.Structures {
			var raw RawPair
			ok := false
			if group != nil {
				raw, ok = findRaw(group.Pairs, s.ID)
			}
			value := ""
			if ok {
				value = raw.Value
			} else if s.Default != "" {
				value = s.Default
			} else if s.Required {
				return record.Data{}, apperr.BadInputf("Error: missing required field %s", s.ID)
			} else {
				continue
			}

			if err := validateElements(s, value); err != nil {
				return record.Data{}, err
			}

			if s.Unique {
				if err := checkUnique(allInCollection, s.ID, cs.ID, value); err != nil {
					return record.Data{}, err
				}
			}

			pair, err := record.NewDataPair(s.ID, cs.ID, value, s.Type.String(), catalog)
			if err != nil {
				return record.Data{}, err
			}
			pairs = append(pairs, pair)
		}
	}

	if update {
		d := record.New(c.ProjectID, c.ID, false, pairs)
		d.ID = existingID
		return d, nil
	}
	return record.New(c.ProjectID, c.ID, false, pairs), nil
}

// DataToRaw is the reverse mapping: pairs are grouped by
// custom_structure_id and ordered per the Collection's declared field
// order (spec §4.F).
func DataToRaw(d record.Data, c schema.Collection) Tree {
	tree := Tree{}

	byStructureID := map[string]record.DataPair{}
	for _, p := range d.Pairs {
		if p.CustomStructureID == "" {
			byStructureID[p.StructureID] = p
		}
	}
	for _, s := range c.Structures {
		if p, ok := byStructureID[s.ID]; ok {
			tree.Pairs = append(tree.Pairs, RawPair{ID: s.ID, Type: s.Type.String(), Value: p.Value})
		}
	}

	for _, cs := range c.CustomStructures {
		group := RawGroup{CustomStructureID: cs.ID}
		byID := map[string]record.DataPair{}
		for _, p := range d.Pairs {
			if p.CustomStructureID == cs.ID {
				byID[p.StructureID] = p
			}
		}
		for _, s := range cs.Structures {
			if p, ok := byID[s.ID]; ok {
				group.Pairs = append(group.Pairs, RawPair{ID: s.ID, Type: s.Type.String(), Value: p.Value})
			}
		}
		tree.Groups = append(tree.Groups, group)
	}

	return tree
}

func findRaw(pairs []RawPair, id string) (RawPair, bool) {
	for _, p := range pairs {
		if p.ID == id {
			return p, true
		}
	}
	return RawPair{}, false
}

func findGroup(groups []RawGroup, customStructureID string) *RawGroup {
	for i := range groups {
		if groups[i].CustomStructureID == customStructureID {
			return &groups[i]
		}
	}
	return nil
}

func typeCompatible(declared schema.Type, incoming string) bool {
	if declared.Kind == schema.TypeCustom {
		return true
	}
	return declared.String() == incoming
}

// validateElements enforces rule 3: array fields arrive comma-separated,
// each element validated individually against min/max/regex/stype.
func validateElements(s schema.Structure, value string) error {
	elements := []string{value}
	if s.Array {
		if value == "" {
			elements = nil
		} else {
			elements = strings.Split(value, ",")
		}
	}
	for _, el := range elements {
		if l := len([]rune(el)); l < s.Min || l > s.Max {
			return apperr.BadInputf("Error: %s length out of bounds", s.ID)
		}
		if s.Regex != "" {
			re, err := regexp.Compile(s.Regex)
			if err != nil {
				return apperr.Internalf("Error: %s regex does not compile", s.ID)
			}
			if !re.MatchString(el) {
				return apperr.BadInputf("Error: %s does not match regex", s.ID)
			}
		}
		if err := checkStype(s.Type, el); err != nil {
			return err
		}
	}
	return nil
}

func checkStype(t schema.Type, value string) error {
	switch t.Kind {
	case schema.TypeInteger:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return apperr.BadInputf("Error: value is not an integer")
		}
	case schema.TypeFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return apperr.BadInputf("Error: value is not a float")
		}
	case schema.TypeBoolean:
		lower := strings.ToLower(value)
		if lower != "true" && lower != "false" {
			return apperr.BadInputf("Error: value is not a boolean")
		}
	}
	return nil
}

// checkUnique enforces rule 4: a unique field's value must not repeat
// across any other record already in the same Collection.
func checkUnique(allInCollection []record.Data, structureID, customStructureID, value string) error {
	for _, d := range allInCollection {
		for _, p := range d.Pairs {
			if p.StructureID == structureID && p.CustomStructureID == customStructureID && p.Value == value {
				return apperr.Conflictf("Error: %s must be unique", structureID)
			}
		}
	}
	return nil
}
