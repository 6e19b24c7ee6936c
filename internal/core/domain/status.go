package domain

import "strings"

// TreeStatus is the closed set of tree health states.
type TreeStatus string

const (
	StatusHealthy         TreeStatus = "healthy"
	StatusSprouting       TreeStatus = "sprouting"
	StatusSick            TreeStatus = "sick"
	StatusDead            TreeStatus = "dead"
	StatusNeedReplacement TreeStatus = "need_replacement"
	StatusRemoved         TreeStatus = "removed"
)

// statusAliases maps normalized spellings that upstream data uses onto the
// canonical status key. Keys here are post-folding (lower case, underscores).
var statusAliases = map[string]string{
	"needs_replacement": string(StatusNeedReplacement),
	"needsreplacement":  string(StatusNeedReplacement),
	"replace":           string(StatusNeedReplacement),
	"alive":             string(StatusHealthy),
	"ok":                string(StatusHealthy),
	"seedling":          string(StatusSprouting),
	"diseased":          string(StatusSick),
}

// activeStatuses are the healthy-like states that get the secondary halo
// on the map.
var activeStatuses = map[TreeStatus]bool{
	StatusHealthy:   true,
	StatusSprouting: true,
}

// NormalizeStatus folds a raw status string to its canonical key: lower
// case, spaces and hyphens become underscores, known aliases resolved.
func NormalizeStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	if canonical, ok := statusAliases[s]; ok {
		return canonical
	}
	return s
}

// DisplayLabel renders a normalized status key for the overlay panel:
// underscore-separated words, each capitalized ("need_replacement" →
// "Need Replacement").
func DisplayLabel(statusKey string) string {
	words := strings.Split(statusKey, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// IsActive reports whether a status is healthy-like.
func (s TreeStatus) IsActive() bool {
	return activeStatuses[TreeStatus(NormalizeStatus(string(s)))]
}

// Valid reports whether the status belongs to the closed enumeration after
// normalization.
func (s TreeStatus) Valid() bool {
	switch TreeStatus(NormalizeStatus(string(s))) {
	case StatusHealthy, StatusSprouting, StatusSick, StatusDead,
		StatusNeedReplacement, StatusRemoved:
		return true
	}
	return false
}
