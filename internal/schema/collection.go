package schema

import (
	"strings"

	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/codec"
	"ixode.dev/core/internal/constraint"
)

// Collection is a typed container of records inside a Project (spec §3).
// Ids are treated as globally unique, not scoped by project — an explicit
// open-question decision preserved unchanged from the source (see
// DESIGN.md).
type Collection struct {
	ID              string
	ProjectID       string
	Name            string
	Description     string
	Structures      []Structure
	CustomStructures []CustomStructure
}

// CreateCollection validates all four fields before the Collection ever
// becomes visible in list. Directory creation is the caller's
// responsibility (the schema package has no knowledge of the filesystem
// root); see schema.Store.Create for the side-effecting wrapper.
func CreateCollection(list []Collection, catalog *constraint.Catalog, id, projectID, name, desc string) ([]Collection, Collection, error) {
	if ExistsCollection(list, id) {
		return list, Collection{}, apperr.Conflictf("Error: collection id already in use")
	}
	vid, err := catalog.Validate("collection", "id", id)
	if err != nil {
		return list, Collection{}, err
	}
	vname, err := catalog.Validate("collection", "name", name)
	if err != nil {
		return list, Collection{}, err
	}
	vdesc, err := catalog.Validate("collection", "description", desc)
	if err != nil {
		return list, Collection{}, err
	}
	c := Collection{ID: vid, ProjectID: projectID, Name: vname, Description: vdesc}
	return append(list, c), c, nil
}

func ExistsCollection(list []Collection, id string) bool {
	_, ok := GetCollection(list, id)
	return ok
}

// GetCollection performs a case-insensitive scan by id (spec §4.D: get is
// case-insensitive).
func GetCollection(list []Collection, id string) (Collection, bool) {
	for _, c := range list {
		if strings.EqualFold(c.ID, id) {
			return c, true
		}
	}
	return Collection{}, false
}

func IndexOfCollection(list []Collection, id string) int {
	for i, c := range list {
		if strings.EqualFold(c.ID, id) {
			return i
		}
	}
	return -1
}

// UpdateCollectionID renames a Collection's id. Ids are globally unique
// across all projects (the uniqueness check below has no project_id
// scoping), matching the source exactly.
func UpdateCollectionID(list []Collection, oldID, newID string, catalog *constraint.Catalog) ([]Collection, error) {
	idx := IndexOfCollection(list, oldID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no collection with this id found")
	}
	if ExistsCollection(list, newID) {
		return list, apperr.Conflictf("Error: collection id already in use")
	}
	v, err := catalog.Validate("collection", "id", newID)
	if err != nil {
		return list, err
	}
	list[idx].ID = v
	return list, nil
}

func UpdateCollectionProjectID(list []Collection, id, projectID string) ([]Collection, error) {
	idx := IndexOfCollection(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no collection with this id found")
	}
	list[idx].ProjectID = projectID
	return list, nil
}

func UpdateCollectionName(list []Collection, id, name string, catalog *constraint.Catalog) ([]Collection, error) {
	idx := IndexOfCollection(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no collection with this id found")
	}
	v, err := catalog.Validate("collection", "name", name)
	if err != nil {
		return list, err
	}
	list[idx].Name = v
	return list, nil
}

func UpdateCollectionDescription(list []Collection, id, desc string, catalog *constraint.Catalog) ([]Collection, error) {
	idx := IndexOfCollection(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no collection with this id found")
	}
	v, err := catalog.Validate("collection", "description", desc)
	if err != nil {
		return list, err
	}
	list[idx].Description = v
	return list, nil
}

func SetStructures(list []Collection, id string, structures []Structure) ([]Collection, error) {
	idx := IndexOfCollection(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no collection with this id found")
	}
	list[idx].Structures = structures
	return list, nil
}

func SetCustomStructures(list []Collection, id string, custom []CustomStructure) ([]Collection, error) {
	idx := IndexOfCollection(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no collection with this id found")
	}
	list[idx].CustomStructures = custom
	return list, nil
}

func RemoveStructure(list []Collection, collectionID, structureID string) ([]Collection, error) {
	idx := IndexOfCollection(list, collectionID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no collection with this id found")
	}
	updated, err := DeleteStructure(list[idx].Structures, structureID)
	if err != nil {
		return list, err
	}
	list[idx].Structures = updated
	return list, nil
}

// DeleteCollection removes a Collection from list. Cascading Data removal
// and directory removal are the caller's responsibility.
func DeleteCollection(list []Collection, id string) ([]Collection, error) {
	idx := IndexOfCollection(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no collection with this id found")
	}
	return append(list[:idx], list[idx+1:]...), nil
}

// DeleteCollectionsByProject removes every Collection owned by projectID,
// for Project.delete's cascade.
func DeleteCollectionsByProject(list []Collection, projectID string) []Collection {
	out := list[:0:0]
	for _, c := range list {
		if c.ProjectID != projectID {
			out = append(out, c)
		}
	}
	return out
}

// StringifyCollection renders id;project_id;name;description>STRUCT…>CUSTOM….
func StringifyCollection(c Collection) string {
	head := strings.Join([]string{
		c.ID, c.ProjectID, codec.EscapeNewline(c.Name), codec.EscapeNewline(c.Description),
	}, ";")
	return head + ">" + StringifyStructures(c.Structures) + ">" + StringifyCustomStructures(c.CustomStructures)
}

// ParseCollection is the inverse of StringifyCollection.
func ParseCollection(text string) (Collection, error) {
	headAndLists := strings.SplitN(text, ">", 3)
	if len(headAndLists) != 3 {
		return Collection{}, apperr.BadInputf("Error: malformed collection record")
	}
	head := strings.Split(headAndLists[0], ";")
	if len(head) != 4 {
		return Collection{}, apperr.BadInputf("Error: malformed collection record")
	}
	structures, err := ParseStructures(headAndLists[1])
	if err != nil {
		return Collection{}, err
	}
	custom, err := ParseCustomStructures(headAndLists[2])
	if err != nil {
		return Collection{}, err
	}
	return Collection{
		ID:               head[0],
		ProjectID:        head[1],
		Name:             codec.UnescapeNewline(head[2]),
		Description:      codec.UnescapeNewline(head[3]),
		Structures:       structures,
		CustomStructures: custom,
	}, nil
}

// StringifyCollections joins the whole list at level 1 (newline).
func StringifyCollections(list []Collection) string {
	parts := make([]string, len(list))
	for i, c := range list {
		parts[i] = StringifyCollection(c)
	}
	return strings.Join(parts, "\n")
}

func ParseCollections(text string) ([]Collection, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var out []Collection
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		c, err := ParseCollection(line)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
