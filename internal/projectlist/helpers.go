package projectlist

import "github.com/starford/projectsync/internal/models"

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Value string `json:"value"`
	ID    string `json:"id"`
}

// Autocomplete projects names of the given projects into suggestions,
// skipping projects without a name. It returns nil when projects is empty,
// so callers can tell "no input" from "no suggestions".
func Autocomplete(projects []models.Project) []Suggestion {
	if len(projects) == 0 {
		return nil
	}
	out := make([]Suggestion, 0, len(projects))
	for _, p := range projects {
		if p.Name == "" {
			continue
		}
		out = append(out, Suggestion{Value: p.Name, ID: p.ID})
	}
	return out
}

// Selection is the result of PartitionSelected.
type Selection struct {
	// Add lists selected entries with no matching project.
	Add []string `json:"add"`
	// Existing lists IDs of matching projects.
	Existing []string `json:"existing"`
}

// PartitionSelected splits selected into projects that already exist and
// names to create. Empty entries are skipped.
//
// A selected entry matches a project when it equals the project's ID, not
// its name.
func PartitionSelected(projects []models.Project, selected []string) Selection {
	res := Selection{Add: []string{}, Existing: []string{}}
	for _, s := range selected {
		if s == "" {
			continue
		}
		if i := indexOf(projects, s); i >= 0 {
			res.Existing = append(res.Existing, projects[i].ID)
		} else {
			res.Add = append(res.Add, s)
		}
	}
	return res
}
