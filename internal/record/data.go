package record

import (
	"strings"

	"github.com/google/uuid"

	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/codec"
)

// Data is one stored record (spec §3).
type Data struct {
	ID           string
	ProjectID    string
	CollectionID string
	Published    bool
	Pairs        []DataPair
}

// New constructs a Data record with a freshly generated id (spec §4.F
// invariant 5: "the resulting record gets a freshly generated id unless
// update is true").
func New(projectID, collectionID string, published bool, pairs []DataPair) Data {
	return Data{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		CollectionID: collectionID,
		Published:    published,
		Pairs:        pairs,
	}
}

// GetAll filters by project_id and collection_id, case-insensitively —
// Data.get_all in the source.
func GetAll(list []Data, projectID, collectionID string) []Data {
	out := list[:0:0]
	for _, d := range list {
		if strings.EqualFold(d.ProjectID, projectID) && strings.EqualFold(d.CollectionID, collectionID) {
			out = append(out, d)
		}
	}
	return out
}

// Get looks a record up by id within the (project_id, collection_id) scope.
func Get(list []Data, projectID, collectionID, id string) (Data, bool) {
	for _, d := range GetAll(list, projectID, collectionID) {
		if strings.EqualFold(d.ID, id) {
			return d, true
		}
	}
	return Data{}, false
}

func indexOfData(list []Data, id string) int {
	for i, d := range list {
		if strings.EqualFold(d.ID, id) {
			return i
		}
	}
	return -1
}

func AddPair(d Data, p DataPair) Data {
	d.Pairs = append(d.Pairs, p)
	return d
}

func UpdatePair(d Data, pairID string, newValue DataPair) Data {
	for i, p := range d.Pairs {
		if p.ID == pairID {
			d.Pairs[i] = newValue
			return d
		}
	}
	return d
}

func RemovePair(d Data, pairID string) Data {
	out := d.Pairs[:0:0]
	for _, p := range d.Pairs {
		if p.ID != pairID {
			out = append(out, p)
		}
	}
	d.Pairs = out
	return d
}

func SetPairs(d Data, pairs []DataPair) Data {
	d.Pairs = pairs
	return d
}

// Delete removes a record by id. Per spec §9's open question, this keys
// only on data_id across the whole list loaded for a (project, collection)
// pair — cross-collection id collisions are undefined, matching the
// source.
func Delete(list []Data, id string) ([]Data, error) {
	idx := indexOfData(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no data with this id found")
	}
	return append(list[:idx], list[idx+1:]...), nil
}

func DeleteByProject(list []Data, projectID string) []Data {
	out := list[:0:0]
	for _, d := range list {
		if !strings.EqualFold(d.ProjectID, projectID) {
			out = append(out, d)
		}
	}
	return out
}

func DeleteByCollection(list []Data, collectionID string) []Data {
	out := list[:0:0]
	for _, d := range list {
		if !strings.EqualFold(d.CollectionID, collectionID) {
			out = append(out, d)
		}
	}
	return out
}

// BulkUpdateProjectID rewrites project_id on every record, used by
// Project.update_id's cascade.
func BulkUpdateProjectID(list []Data, oldID, newID string) []Data {
	out := make([]Data, len(list))
	copy(out, list)
	for i, d := range out {
		if strings.EqualFold(d.ProjectID, oldID) {
			out[i].ProjectID = newID
		}
	}
	return out
}

// BulkUpdateCollectionID rewrites collection_id on every record, used by
// Collection.update_id's cascade.
func BulkUpdateCollectionID(list []Data, oldID, newID string) []Data {
	out := make([]Data, len(list))
	copy(out, list)
	for i, d := range out {
		if strings.EqualFold(d.CollectionID, oldID) {
			out[i].CollectionID = newID
		}
	}
	return out
}

// BulkUpdateStructureID rewrites DataPair.structure_id on every pair of
// every record scoped to (projectID, collectionID) — spec §8 invariant 2.
func BulkUpdateStructureID(list []Data, projectID, collectionID, oldID, newID string) []Data {
	out := make([]Data, len(list))
	copy(out, list)
	for i, d := range out {
		if strings.EqualFold(d.ProjectID, projectID) && strings.EqualFold(d.CollectionID, collectionID) {
			out[i].Pairs = BulkUpdatePairsStructureID(d.Pairs, oldID, newID)
		}
	}
	return out
}

func BulkUpdateCustomStructureID(list []Data, projectID, collectionID, oldID, newID string) []Data {
	out := make([]Data, len(list))
	copy(out, list)
	for i, d := range out {
		if strings.EqualFold(d.ProjectID, projectID) && strings.EqualFold(d.CollectionID, collectionID) {
			out[i].Pairs = BulkUpdatePairsCustomStructureID(d.Pairs, oldID, newID)
		}
	}
	return out
}

// RemoveStructureEverywhere drops the DataPair referencing structureID
// from every record in the (projectID, collectionID) scope — Structure
// delete's cascade.
func RemoveStructureEverywhere(list []Data, projectID, collectionID, structureID string) []Data {
	out := make([]Data, len(list))
	copy(out, list)
	for i, d := range out {
		if strings.EqualFold(d.ProjectID, projectID) && strings.EqualFold(d.CollectionID, collectionID) {
			out[i].Pairs = RemoveByStructureID(d.Pairs, structureID)
		}
	}
	return out
}

// StringifyData renders id;project_id;collection_id;published;PAIR§PAIR….
func StringifyData(d Data) string {
	return strings.Join([]string{
		d.ID, d.ProjectID, d.CollectionID, FormatBool01(d.Published), StringifyDataPairs(d.Pairs),
	}, ";")
}

func ParseData(text string) (Data, error) {
	fields := strings.SplitN(text, ";", 5)
	if len(fields) != 5 {
		return Data{}, apperr.BadInputf("Error: malformed data record")
	}
	pairs, err := ParseDataPairs(fields[4])
	if err != nil {
		return Data{}, err
	}
	return Data{
		ID:           fields[0],
		ProjectID:    fields[1],
		CollectionID: fields[2],
		Published:    ParseBool01(fields[3]),
		Pairs:        pairs,
	}, nil
}

// StringifyAll joins records with the Data-specific separator
// "----------" (spec §6 level 1 override), escaping any literal
// occurrence of that separator inside field values first.
func StringifyAll(list []Data) string {
	parts := make([]string, len(list))
	for i, d := range list {
		parts[i] = codec.EscapeRecordSeparator(StringifyData(d))
	}
	return strings.Join(parts, "\n"+codec.RecordSeparator+"\n")
}

// ParseAll splits on "----------" and discards fragments too short to be
// a real record (spec's unwrap_data: "filters len>=3").
func ParseAll(text string) ([]Data, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var out []Data
	for _, block := range strings.Split(text, codec.RecordSeparator) {
		block = strings.TrimSpace(block)
		if len(block) < 3 {
			continue
		}
		d, err := ParseData(codec.UnescapeRecordSeparator(block))
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
