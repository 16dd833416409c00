// Package record implements Data (a stored record) and DataPair (one field
// value of a record), plus the bulk rewriters that keep records in sync
// with schema changes (spec §4.E).
package record

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/codec"
	"ixode.dev/core/internal/constraint"
)

// DataPair is one stored field value of one Data record (spec §3).
type DataPair struct {
	ID                string
	StructureID       string
	CustomStructureID string
	Value             string
	Dtype             string
}

// escapeDataPairValue applies the value-specific escape DataPair.update_value
// uses before constraint validation: '§' collides with the level-4
// data-pair-list delimiter so it is replaced first, then '\n' is replaced
// by its sentinel (constraint.Validate would do the latter itself, but the
// source applies both up front).
func escapeDataPairValue(value string) string {
	value = strings.ReplaceAll(value, "§", "_")
	return codec.EscapeNewline(value)
}

func NewDataPair(structureID, customStructureID, value, dtype string, catalog *constraint.Catalog) (DataPair, error) {
	escaped := escapeDataPairValue(value)
	v, err := catalog.Validate("datapair", "value", escaped)
	if err != nil {
		return DataPair{}, err
	}
	return DataPair{
		ID:                uuid.NewString(),
		StructureID:       structureID,
		CustomStructureID: customStructureID,
		Value:             v,
		Dtype:             dtype,
	}, nil
}

func UpdateDataPairValue(p DataPair, value string, catalog *constraint.Catalog) (DataPair, error) {
	escaped := escapeDataPairValue(value)
	v, err := catalog.Validate("datapair", "value", escaped)
	if err != nil {
		return DataPair{}, err
	}
	p.Value = v
	return p, nil
}

// BulkUpdateValue rewrites the value of every pair in list matching
// structureID, for a schema-driven bulk rewrite (spec §4.E).
func BulkUpdateValue(list []DataPair, structureID, value string, catalog *constraint.Catalog) ([]DataPair, error) {
	out := make([]DataPair, len(list))
	copy(out, list)
	for i, p := range out {
		if p.StructureID == structureID {
			updated, err := UpdateDataPairValue(p, value, catalog)
			if err != nil {
				return list, err
			}
			out[i] = updated
		}
	}
	return out, nil
}

// BulkUpdateDtype rewrites the dtype of every pair matching structureID —
// used when a Structure's stype changes.
func BulkUpdateDtype(list []DataPair, structureID, dtype string) []DataPair {
	out := make([]DataPair, len(list))
	copy(out, list)
	for i, p := range out {
		if p.StructureID == structureID {
			out[i].Dtype = dtype
		}
	}
	return out
}

// BulkUpdatePairsStructureID rewrites every pair's structure_id, the rename
// cascade described in spec §3 ("a Structure id rename rewrites every
// DataPair's structure_id").
func BulkUpdatePairsStructureID(list []DataPair, oldID, newID string) []DataPair {
	out := make([]DataPair, len(list))
	copy(out, list)
	for i, p := range out {
		if p.StructureID == oldID {
			out[i].StructureID = newID
		}
	}
	return out
}

// BulkUpdatePairsCustomStructureID rewrites every pair's custom_structure_id.
func BulkUpdatePairsCustomStructureID(list []DataPair, oldID, newID string) []DataPair {
	out := make([]DataPair, len(list))
	copy(out, list)
	for i, p := range out {
		if p.CustomStructureID == oldID {
			out[i].CustomStructureID = newID
		}
	}
	return out
}

// RemoveByStructureID drops every pair referencing structureID — used
// when a Structure itself is deleted (spec §8 invariant 3 family).
func RemoveByStructureID(list []DataPair, structureID string) []DataPair {
	out := list[:0:0]
	for _, p := range list {
		if p.StructureID != structureID {
			out = append(out, p)
		}
	}
	return out
}

// StringifyDataPair renders id=structure_id=custom_structure_id=dtype=value
// (spec §6 level 6). Because value itself may legitimately contain '=',
// ParseDataPair rejoins every field after the fourth with '='.
func StringifyDataPair(p DataPair) string {
	return strings.Join([]string{p.ID, p.StructureID, p.CustomStructureID, p.Dtype, p.Value}, "=")
}

func ParseDataPair(text string) (DataPair, error) {
	fields := strings.SplitN(text, "=", 5)
	if len(fields) != 5 {
		return DataPair{}, apperr.BadInputf("Error: malformed data pair record")
	}
	return DataPair{
		ID:                fields[0],
		StructureID:       fields[1],
		CustomStructureID: fields[2],
		Dtype:             fields[3],
		Value:             fields[4],
	}, nil
}

// StringifyDataPairs joins the list at level 4 ('§').
func StringifyDataPairs(list []DataPair) string {
	parts := make([]string, len(list))
	for i, p := range list {
		parts[i] = StringifyDataPair(p)
	}
	return strings.Join(parts, "§")
}

func ParseDataPairs(text string) ([]DataPair, error) {
	if text == "" {
		return nil, nil
	}
	parts := strings.Split(text, "§")
	out := make([]DataPair, 0, len(parts))
	for _, p := range parts {
		pair, err := ParseDataPair(p)
		if err != nil {
			continue
		}
		out = append(out, pair)
	}
	return out, nil
}

// ParseBool01 is exposed for the bridge/flow layers which also need the
// published(0|1) convention Data uses on disk.
func ParseBool01(s string) bool {
	n, _ := strconv.Atoi(s)
	return n != 0
}

func FormatBool01(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
