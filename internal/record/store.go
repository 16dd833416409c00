package record

import (
	"ixode.dev/core/internal/codec"
	"ixode.dev/core/internal/lock"
)

// Store persists the Data records of one Collection under
// <dataRoot>/projects/{project_id}/{collection_id}/data.txt, matching the
// directory spec §3 says a Collection owns while it exists.
type Store struct {
	dataRoot string
	key      string
	locks    *lock.Manager
}

func NewStore(dataRoot, encryptionKey string, locks *lock.Manager) *Store {
	return &Store{dataRoot: dataRoot, key: encryptionKey, locks: locks}
}

func (s *Store) path(projectID, collectionID string) string {
	return s.dataRoot + "/projects/" + projectID + "/" + collectionID + "/data.txt"
}

func (s *Store) FetchAll(projectID, collectionID string) ([]Data, error) {
	p := s.path(projectID, collectionID)
	unlock := s.locks.RLock(p)
	defer unlock()
	text, err := codec.Fetch(p, s.key)
	if err != nil {
		return nil, err
	}
	return ParseAll(text)
}

func (s *Store) SaveAll(projectID, collectionID string, list []Data) error {
	p := s.path(projectID, collectionID)
	unlock := s.locks.Lock(p)
	defer unlock()
	return codec.Save(p, StringifyAll(list), s.key)
}

// DeleteCollectionDir removes the whole backing directory, for
// Collection.delete's cascade.
func (s *Store) DeleteCollectionDir(projectID, collectionID string) error {
	return codec.RemoveDir(s.dataRoot + "/projects/" + projectID + "/" + collectionID)
}
