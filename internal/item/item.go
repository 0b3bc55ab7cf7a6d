// Package item provides the planning item model for planview.
package item

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	// PlanviewDir is the default planview data directory
	PlanviewDir = ".planview"
	// ItemsDir is the subdirectory for item records
	ItemsDir = "items"
	// SpecsDir is the subdirectory for specification record sets
	SpecsDir = "specs"
)

// Kind represents the type of a planning item.
type Kind string

const (
	KindProject Kind = "project"
	KindEpic    Kind = "epic"
	KindFeature Kind = "feature"
	KindStory   Kind = "story"
	KindBug     Kind = "bug"
)

// ValidKinds returns all valid kind values.
func ValidKinds() []Kind {
	return []Kind{KindProject, KindEpic, KindFeature, KindStory, KindBug}
}

// IsValidKind returns true if the kind is a valid kind value.
func IsValidKind(k Kind) bool {
	switch k {
	case KindProject, KindEpic, KindFeature, KindStory, KindBug:
		return true
	default:
		return false
	}
}

// IsContainer returns true for kinds that can have children.
// Stories and bugs are always leaves.
func (k Kind) IsContainer() bool {
	switch k {
	case KindProject, KindEpic, KindFeature:
		return true
	default:
		return false
	}
}

// idPrefixes maps ID prefixes to their kind.
var idPrefixes = map[string]Kind{
	"PROJ": KindProject,
	"EPIC": KindEpic,
	"FEAT": KindFeature,
	"STOR": KindStory,
	"BUG":  KindBug,
}

// Prefix returns the ID prefix for a kind (e.g. "EPIC" for epics).
func (k Kind) Prefix() string {
	for prefix, kind := range idPrefixes {
		if kind == k {
			return prefix
		}
	}
	return ""
}

// idPattern matches type-prefixed item codes like EPIC-003.
var idPattern = regexp.MustCompile(`^(PROJ|EPIC|FEAT|STOR|BUG)-\d{3,}$`)

// ValidateID checks that an item ID is a well-formed type-prefixed code.
func ValidateID(id string) bool {
	return idPattern.MatchString(id)
}

// KindForID returns the kind implied by an item ID's prefix.
func KindForID(id string) (Kind, bool) {
	i := strings.IndexByte(id, '-')
	if i < 0 {
		return "", false
	}
	k, ok := idPrefixes[id[:i]]
	return k, ok
}

// Priority represents the urgency/importance of an item.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// ValidPriorities returns all valid priority values.
func ValidPriorities() []Priority {
	return []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}
}

// IsValidPriority returns true if the priority is a valid priority value.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	default:
		return false
	}
}

// PriorityOrder returns a numeric value for sorting (lower = higher priority).
func PriorityOrder(p Priority) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 2 // Default to normal
	}
}

// Item represents a single planning item backed by a markdown record.
type Item struct {
	// ID is the type-prefixed code (e.g. EPIC-003)
	ID string `yaml:"id" json:"id"`

	// Title is a short description of the item
	Title string `yaml:"title" json:"title"`

	// Kind is the item type (project, epic, feature, story, bug)
	Kind Kind `yaml:"kind" json:"kind"`

	// Status is the persisted lifecycle status
	Status Status `yaml:"status" json:"status"`

	// Priority indicates the urgency/importance of the item
	Priority Priority `yaml:"priority,omitempty" json:"priority,omitempty"`

	// Parent is the ID of the parent item, empty for roots
	Parent string `yaml:"parent,omitempty" json:"parent,omitempty"`

	// Spec names the specification record set for this item, empty if none
	Spec string `yaml:"spec,omitempty" json:"spec,omitempty"`

	// Updated is the last-modified marker maintained on status writes
	Updated time.Time `yaml:"updated,omitempty" json:"updated,omitempty"`

	// Path is the source record location. Not persisted in the record itself.
	Path string `yaml:"-" json:"path,omitempty"`
}

// GetPriority returns the item's priority, defaulting to normal if not set.
func (it *Item) GetPriority() Priority {
	if it.Priority == "" {
		return PriorityNormal
	}
	return it.Priority
}

// HasParent returns true if the item declares a parent.
func (it *Item) HasParent() bool {
	return it.Parent != ""
}

// HasSpec returns true if the item references a specification record set.
func (it *Item) HasSpec() bool {
	return it.Spec != ""
}

// IsArchived reports whether the item is archived, either by its stored
// status or by living under a path segment named exactly "archive".
// Substring matches ("archive-old", "archived-items") do not count.
func IsArchived(it *Item) bool {
	if it.Status == StatusArchived {
		return true
	}
	return pathHasArchiveSegment(it.Path)
}

// pathHasArchiveSegment checks for a path segment exactly equal to "archive",
// with separators unified and case folded.
func pathHasArchiveSegment(path string) bool {
	if path == "" {
		return false
	}
	normalized := strings.ToLower(filepath.ToSlash(path))
	for _, seg := range strings.Split(normalized, "/") {
		if seg == "archive" {
			return true
		}
	}
	return false
}

// EffectiveStatus returns the status used for grouping and display:
// Archived whenever the archive predicate holds, otherwise the stored status.
// The stored status field is never mutated.
func EffectiveStatus(it *Item) Status {
	if IsArchived(it) {
		return StatusArchived
	}
	return it.Status
}

// SortItems orders items by priority, then ID.
// Used for deterministic listing and stable child ordering.
func SortItems(items []*Item) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := PriorityOrder(items[i].GetPriority()), PriorityOrder(items[j].GetPriority())
		if pi != pj {
			return pi < pj
		}
		return items[i].ID < items[j].ID
	})
}
