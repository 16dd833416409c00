package schema

import (
	"strings"

	"ixode.dev/core/internal/apperr"
	"ixode.dev/core/internal/codec"
	"ixode.dev/core/internal/constraint"
)

// Project is the top-level owner of Collections (spec §3).
type Project struct {
	ID          string
	Name        string
	Description string
	APIPath     string
	Members     []string
}

func CreateProject(list []Project, catalog *constraint.Catalog, id, name, desc, apiPath string) ([]Project, Project, error) {
	if ExistsProject(list, id) {
		return list, Project{}, apperr.Conflictf("Error: project id already in use")
	}
	vid, err := catalog.Validate("project", "id", id)
	if err != nil {
		return list, Project{}, err
	}
	vname, err := catalog.Validate("project", "name", name)
	if err != nil {
		return list, Project{}, err
	}
	vdesc, err := catalog.Validate("project", "description", desc)
	if err != nil {
		return list, Project{}, err
	}
	vpath, err := catalog.Validate("project", "api_path", apiPath)
	if err != nil {
		return list, Project{}, err
	}
	p := Project{ID: vid, Name: vname, Description: vdesc, APIPath: vpath}
	return append(list, p), p, nil
}

func ExistsProject(list []Project, id string) bool {
	_, ok := GetProject(list, id)
	return ok
}

func GetProject(list []Project, id string) (Project, bool) {
	for _, p := range list {
		if strings.EqualFold(p.ID, id) {
			return p, true
		}
	}
	return Project{}, false
}

func indexOfProject(list []Project, id string) int {
	for i, p := range list {
		if strings.EqualFold(p.ID, id) {
			return i
		}
	}
	return -1
}

// GetProjectByAPIPath finds the project whose api_path is the longest
// prefix of requestPath, the routing entry point described in spec §2.
func GetProjectByAPIPath(list []Project, requestPath string) (Project, bool) {
	best := -1
	var match Project
	for _, p := range list {
		if p.APIPath == "" {
			continue
		}
		if strings.HasPrefix(requestPath, p.APIPath) && len(p.APIPath) > best {
			best = len(p.APIPath)
			match = p
		}
	}
	return match, best >= 0
}

func UpdateProjectID(list []Project, oldID, newID string, catalog *constraint.Catalog) ([]Project, error) {
	idx := indexOfProject(list, oldID)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no project with this id found")
	}
	if ExistsProject(list, newID) {
		return list, apperr.Conflictf("Error: project id already in use")
	}
	v, err := catalog.Validate("project", "id", newID)
	if err != nil {
		return list, err
	}
	list[idx].ID = v
	return list, nil
}

func UpdateProjectName(list []Project, id, name string, catalog *constraint.Catalog) ([]Project, error) {
	idx := indexOfProject(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no project with this id found")
	}
	v, err := catalog.Validate("project", "name", name)
	if err != nil {
		return list, err
	}
	list[idx].Name = v
	return list, nil
}

func UpdateProjectDescription(list []Project, id, desc string, catalog *constraint.Catalog) ([]Project, error) {
	idx := indexOfProject(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no project with this id found")
	}
	v, err := catalog.Validate("project", "description", desc)
	if err != nil {
		return list, err
	}
	list[idx].Description = v
	return list, nil
}

func UpdateProjectAPIPath(list []Project, id, apiPath string, catalog *constraint.Catalog) ([]Project, error) {
	idx := indexOfProject(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no project with this id found")
	}
	v, err := catalog.Validate("project", "api_path", apiPath)
	if err != nil {
		return list, err
	}
	list[idx].APIPath = v
	return list, nil
}

func AddMember(list []Project, id, userID string) ([]Project, error) {
	idx := indexOfProject(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no project with this id found")
	}
	for _, m := range list[idx].Members {
		if strings.EqualFold(m, userID) {
			return list, apperr.Conflictf("Error: user is already a member")
		}
	}
	list[idx].Members = append(list[idx].Members, userID)
	return list, nil
}

func RemoveMember(list []Project, id, userID string) ([]Project, error) {
	idx := indexOfProject(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no project with this id found")
	}
	members := list[idx].Members[:0:0]
	for _, m := range list[idx].Members {
		if !strings.EqualFold(m, userID) {
			members = append(members, m)
		}
	}
	list[idx].Members = members
	return list, nil
}

// IsMember reports whether userID (case-insensitively) is listed as a
// member of p, the authorization rule routing.rs applies before exposing a
// project's routes to a non-root caller (supplemented feature, see
// SPEC_FULL.md §3).
func IsMember(p Project, userID string) bool {
	for _, m := range p.Members {
		if strings.EqualFold(m, userID) {
			return true
		}
	}
	return false
}

func DeleteProject(list []Project, id string) ([]Project, error) {
	idx := indexOfProject(list, id)
	if idx < 0 {
		return list, apperr.NotFoundf("Error: no project with this id found")
	}
	return append(list[:idx], list[idx+1:]...), nil
}

func StringifyProject(p Project) string {
	return strings.Join([]string{
		p.ID,
		codec.EscapeNewline(p.Name),
		codec.EscapeNewline(p.Description),
		p.APIPath,
		strings.Join(p.Members, ","),
	}, ";")
}

func ParseProject(text string) (Project, error) {
	fields := strings.SplitN(text, ";", 5)
	if len(fields) != 5 {
		return Project{}, apperr.BadInputf("Error: malformed project record")
	}
	var members []string
	if fields[4] != "" {
		members = strings.Split(fields[4], ",")
	}
	return Project{
		ID:          fields[0],
		Name:        codec.UnescapeNewline(fields[1]),
		Description: codec.UnescapeNewline(fields[2]),
		APIPath:     fields[3],
		Members:     members,
	}, nil
}

func StringifyProjects(list []Project) string {
	parts := make([]string, len(list))
	for i, p := range list {
		parts[i] = StringifyProject(p)
	}
	return strings.Join(parts, "\n")
}

func ParseProjects(text string) ([]Project, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var out []Project
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		p, err := ParseProject(line)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
