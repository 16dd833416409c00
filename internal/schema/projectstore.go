package schema

import (
	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/codec"
	"ixode.dev/core/internal/constraint"
	"ixode.dev/core/internal/lock"
)

// ProjectStore owns the single projects.txt file the mapping registry
// points "projects" at.
type ProjectStore struct {
	path    string
	key     string
	catalog *constraint.Catalog
	locks   *lock.Manager
}

func NewProjectStore(path, encryptionKey string, catalog *constraint.Catalog, locks *lock.Manager) *ProjectStore {
	return &ProjectStore{path: path, key: encryptionKey, catalog: catalog, locks: locks}
}

func (s *ProjectStore) fetchAll() ([]Project, error) {
	unlock := s.locks.RLock(s.path)
	defer unlock()
	text, err := codec.Fetch(s.path, s.key)
	if err != nil {
		return nil, err
	}
	return ParseProjects(text)
}

func (s *ProjectStore) saveAll(list []Project) error {
	unlock := s.locks.Lock(s.path)
	defer unlock()
	return codec.Save(s.path, StringifyProjects(list), s.key)
}

func (s *ProjectStore) All() ([]Project, error) {
	return s.fetchAll()
}

func (s *ProjectStore) Get(id string) (Project, error) {
	list, err := s.fetchAll()
	if err != nil {
		return Project{}, err
	}
	p, ok := GetProject(list, id)
	if !ok {
		return Project{}, apperr.NotFoundf("Error: no project with this id found")
	}
	return p, nil
}

func (s *ProjectStore) Create(id, name, desc, apiPath string) (Project, error) {
	list, err := s.fetchAll()
	if err != nil {
		return Project{}, err
	}
	updated, p, err := CreateProject(list, s.catalog, id, name, desc, apiPath)
	if err != nil {
		return Project{}, err
	}
	if err := s.saveAll(updated); err != nil {
		return Project{}, err
	}
	return p, nil
}

func (s *ProjectStore) Delete(id string) error {
	list, err := s.fetchAll()
	if err != nil {
		return err
	}
	updated, err := DeleteProject(list, id)
	if err != nil {
		return err
	}
	return s.saveAll(updated)
}
