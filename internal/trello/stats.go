package trello

import "strings"

// Category is the reporting bucket a list falls into
type Category string

const (
	CategoryInProgress Category = "inprogress"
	CategoryDone       Category = "done"
	CategoryOther      Category = "other"
	CategoryUnknown    Category = "unknown"
)

// TaskStats counts cards per reporting bucket
type TaskStats struct {
	InProgress int `json:"in_progress"`
	Done       int `json:"done"`
}

// Classify maps a list name to its bucket. Matching is case-insensitive.
func Classify(listName string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(listName))) {
	case CategoryInProgress:
		return CategoryInProgress
	case CategoryDone:
		return CategoryDone
	default:
		return CategoryOther
	}
}

// CountTasks buckets cards by the name of the list they sit in. Cards whose
// list id is absent from lists are treated as unknown and not counted.
func CountTasks(cards []Card, lists map[string]string) TaskStats {
	var stats TaskStats
	for _, card := range cards {
		category := CategoryUnknown
		if name, ok := lists[card.ListID]; ok {
			category = Classify(name)
		}

		switch category {
		case CategoryInProgress:
			stats.InProgress++
		case CategoryDone:
			stats.Done++
		}
	}
	return stats
}
