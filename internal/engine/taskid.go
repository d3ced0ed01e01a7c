package engine

import "regexp"

// Conflicts cross-reference the task a rejected call referred to. The id is
// recovered from the request path; this is a display heuristic, not a
// foreign key, and a path-shape change silently disables it.
var taskPathPattern = regexp.MustCompile(`^/api/tasks/([^/?]+)(?:[/?]|$)`)

func taskIDFromPath(path string) *string {
	m := taskPathPattern.FindStringSubmatch(path)
	if m == nil {
		return nil
	}
	id := m[1]
	return &id
}
