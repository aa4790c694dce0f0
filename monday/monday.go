// Package monday implements the task-board adapter for the monday.com
// GraphQL API.
package monday

import (
	"fmt"
	"strings"

	"github.com/fwojciec/dispatch"
)

const (
	service             = "monday"
	defaultBaseURL      = "https://api.monday.com/v2"
	defaultStatusColumn = "status"

	// DefaultPageLimit is the number of items read from a board per call.
	DefaultPageLimit = 25
)

// Column titles extracted from an item's column values. Matching is exact
// and case-sensitive.
const (
	columnStatus   = "Status"
	columnDueDate  = "Due Date"
	columnOwner    = "Owner"
	columnTimeline = "Timeline"
)

// Status is an item status accepted by ListItemsByStatus.
type Status string

const (
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusStuck   Status = "stuck"
	StatusBlocked Status = "blocked"
)

// statusIndex maps each status to the label index of monday's default status
// column. Blocked is an alias of Stuck, which is what monday calls it.
var statusIndex = map[Status]int{
	StatusWorking: 0,
	StatusDone:    1,
	StatusStuck:   2,
	StatusBlocked: 2,
}

// Statuses lists the accepted statuses in declaration order.
func Statuses() []Status {
	return []Status{StatusWorking, StatusDone, StatusStuck, StatusBlocked}
}

// Index returns the label index for s.
func (s Status) Index() (int, bool) {
	i, ok := statusIndex[s]
	return i, ok
}

func statusList() string {
	names := make([]string, 0, len(statusIndex))
	for _, s := range Statuses() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

// Board is a monday board.
type Board struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Item is a normalized board item. Fields whose column is missing from the
// board are nil.
type Item struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Status   *string  `json:"status,omitempty"`
	DueDate  *string  `json:"dueDate,omitempty"`
	Owner    *string  `json:"owner,omitempty"`
	Timeline *string  `json:"timeline,omitempty"`
	Updates  []Update `json:"updates,omitempty"`
}

// Update is one entry of an item's update thread.
type Update struct {
	Text      string `json:"text"`
	Author    string `json:"author"`
	CreatedAt string `json:"createdAt"`
}

type rawItem struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	ColumnValues []rawColumn `json:"column_values"`
	Updates      []rawUpdate `json:"updates"`
}

type rawColumn struct {
	Column struct {
		Title string `json:"title"`
	} `json:"column"`
	Text *string `json:"text"`
}

type rawUpdate struct {
	TextBody  string `json:"text_body"`
	CreatedAt string `json:"created_at"`
	Creator   *struct {
		Name string `json:"name"`
	} `json:"creator"`
}

func normalizeItem(raw rawItem, withUpdates bool) Item {
	item := Item{ID: raw.ID, Name: raw.Name}
	// The first column with a given title wins, even when it has no text.
	seen := make(map[string]bool, len(raw.ColumnValues))
	for _, cv := range raw.ColumnValues {
		if seen[cv.Column.Title] {
			continue
		}
		seen[cv.Column.Title] = true
		if cv.Text == nil {
			continue
		}
		text := *cv.Text
		switch cv.Column.Title {
		case columnStatus:
			item.Status = &text
		case columnDueDate:
			item.DueDate = &text
		case columnOwner:
			item.Owner = &text
		case columnTimeline:
			item.Timeline = &text
		}
	}
	if withUpdates {
		item.Updates = make([]Update, 0, len(raw.Updates))
		for _, u := range raw.Updates {
			up := Update{Text: u.TextBody, CreatedAt: u.CreatedAt}
			if u.Creator != nil {
				up.Author = u.Creator.Name
			}
			item.Updates = append(item.Updates, up)
		}
	}
	return item
}

func invalidStatus(s Status) error {
	return &dispatch.ArgumentError{
		Field:  "status",
		Reason: fmt.Sprintf("%q is not one of %s", s, statusList()),
	}
}
