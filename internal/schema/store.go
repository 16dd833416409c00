package schema

import (
	"os"

	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/codec"
	"ixode.dev/core/internal/constraint"
	"ixode.dev/core/internal/lock"
)

// CollectionStore owns the side effects GetCollection/CreateCollection/
// DeleteCollection leave to the caller: the collections file itself and
// the per-collection data directory (spec §3: "a directory
// /data/projects/{project_id}/{collection_id} exists while the collection
// does").
type CollectionStore struct {
	path     string
	key      string
	dataRoot string
	catalog  *constraint.Catalog
	locks    *lock.Manager
}

func NewCollectionStore(path, encryptionKey, dataRoot string, catalog *constraint.Catalog, locks *lock.Manager) *CollectionStore {
	return &CollectionStore{path: path, key: encryptionKey, dataRoot: dataRoot, catalog: catalog, locks: locks}
}

func (s *CollectionStore) fetchAll() ([]Collection, error) {
	unlock := s.locks.RLock(s.path)
	defer unlock()
	text, err := codec.Fetch(s.path, s.key)
	if err != nil {
		return nil, err
	}
	return ParseCollections(text)
}

func (s *CollectionStore) saveAll(list []Collection) error {
	unlock := s.locks.Lock(s.path)
	defer unlock()
	return codec.Save(s.path, StringifyCollections(list), s.key)
}

func (s *CollectionStore) All() ([]Collection, error) {
	return s.fetchAll()
}

func (s *CollectionStore) Get(id string) (Collection, error) {
	list, err := s.fetchAll()
	if err != nil {
		return Collection{}, err
	}
	c, ok := GetCollection(list, id)
	if !ok {
		return Collection{}, apperr.NotFoundf("Error: no collection with this id found")
	}
	return c, nil
}

// Create persists a new Collection and creates its backing directory only
// after the in-memory create succeeds, never before.
func (s *CollectionStore) Create(id, projectID, name, desc string) (Collection, error) {
	list, err := s.fetchAll()
	if err != nil {
		return Collection{}, err
	}
	updated, c, err := CreateCollection(list, s.catalog, id, projectID, name, desc)
	if err != nil {
		return Collection{}, err
	}
	if err := codec.MakeDir(s.collectionDir(projectID, c.ID)); err != nil {
		return Collection{}, err
	}
	if err := s.saveAll(updated); err != nil {
		return Collection{}, err
	}
	return c, nil
}

// Rename renames a Collection's id and its backing directory together. A
// failure after the directory rename but before the save leaves the
// directory under the new name and the file still pointing at the old
// one; spec §9's "write the dependent file first" ordering note applies
// to the higher Structure/Data cascade, not to this single-file rename.
func (s *CollectionStore) Rename(oldID, newID string) (Collection, error) {
	list, err := s.fetchAll()
	if err != nil {
		return Collection{}, err
	}
	c, ok := GetCollection(list, oldID)
	if !ok {
		return Collection{}, apperr.NotFoundf("Error: no collection with this id found")
	}
	updated, err := UpdateCollectionID(list, oldID, newID, s.catalog)
	if err != nil {
		return Collection{}, err
	}
	oldDir := s.collectionDir(c.ProjectID, oldID)
	newDir := s.collectionDir(c.ProjectID, newID)
	if err := os.Rename(oldDir, newDir); err != nil && !os.IsNotExist(err) {
		return Collection{}, apperr.Wrap(apperr.Internal, err, "Error: failed renaming directory "+oldDir)
	}
	if err := s.saveAll(updated); err != nil {
		return Collection{}, err
	}
	renamed, _ := GetCollection(updated, newID)
	return renamed, nil
}

func (s *CollectionStore) Delete(id string) error {
	list, err := s.fetchAll()
	if err != nil {
		return err
	}
	c, ok := GetCollection(list, id)
	if !ok {
		return apperr.NotFoundf("Error: no collection with this id found")
	}
	updated, err := DeleteCollection(list, id)
	if err != nil {
		return err
	}
	if err := s.saveAll(updated); err != nil {
		return err
	}
	return codec.RemoveDir(s.collectionDir(c.ProjectID, id))
}

func (s *CollectionStore) collectionDir(projectID, collectionID string) string {
	return s.dataRoot + "/projects/" + projectID + "/" + collectionID
}
