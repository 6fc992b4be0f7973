package workflow

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/velia-hr/portal/internal/role"
)

// Board groups stable users by role. Every role has an entry.
type Board map[role.Role][]Row

// Totals counts stable users per role. Escalating users are listed in the
// escalation queue instead. Every role has an entry.
func (w *Workflow) Totals() map[role.Role]int {
	w.mu.Lock()
	defer w.mu.Unlock()

	totals := make(map[role.Role]int, len(role.All))
	for _, r := range role.All {
		totals[r] = 0
	}
	for _, rec := range w.roster {
		if rec.Status.IsStable() {
			totals[role.ToRole(string(rec.Role))]++
		}
	}
	return totals
}

// Table returns stable users matching the applied table query, ordered by
// the active sort.
func (w *Workflow) Table() []Row {
	w.mu.Lock()
	rows := w.stableRowsLocked()
	query := w.tableQuery
	s := w.sort
	w.mu.Unlock()

	if tokens := strings.Fields(query); len(tokens) > 0 {
		rows = slices.DeleteFunc(rows, func(r Row) bool {
			return !matchesAll(tableHaystack(r.UserRecord), tokens)
		})
	}

	if s.Key == SortNone {
		return rows
	}

	// Ascending is stable, so roster order breaks ties. Descending is its
	// exact reverse.
	slices.SortStableFunc(rows, func(a, b Row) int {
		return cmp.Compare(sortValue(a.UserRecord, s.Key), sortValue(b.UserRecord, s.Key))
	})
	if s.Direction == Descending {
		slices.Reverse(rows)
	}
	return rows
}

// ToggleSort activates key, or flips the direction if key is already active.
func (w *Workflow) ToggleSort(key SortKey) Sort {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sort.Key == key {
		if w.sort.Direction == Ascending {
			w.sort.Direction = Descending
		} else {
			w.sort.Direction = Ascending
		}
	} else {
		w.sort = Sort{Key: key, Direction: Ascending}
	}
	return w.sort
}

// CurrentSort returns the active table sort.
func (w *Workflow) CurrentSort() Sort {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sort
}

// SetTableQuery records free-text input. It takes effect once input has been
// quiet for the debounce interval, or immediately on SubmitTableQuery.
func (w *Workflow) SetTableQuery(q string) {
	w.mu.Lock()
	w.pendingQuery = q
	w.mu.Unlock()
	w.debounced()
}

// SubmitTableQuery applies the pending query without waiting.
func (w *Workflow) SubmitTableQuery() {
	w.applyTableQuery()
}

// TableQuery returns the query the table is currently filtered by.
func (w *Workflow) TableQuery() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tableQuery
}

func (w *Workflow) applyTableQuery() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tableQuery = strings.ToLower(strings.TrimSpace(w.pendingQuery))
}

// SetColumnQuery sets the board filter of one role group.
func (w *Workflow) SetColumnQuery(r role.Role, q string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.columnQuery[role.ToRole(string(r))] = strings.ToLower(strings.TrimSpace(q))
}

// Board returns stable users grouped by role, each group filtered by its own
// column query and ordered by display name.
func (w *Workflow) Board() Board {
	w.mu.Lock()
	rows := w.stableRowsLocked()
	queries := make(map[role.Role]string, len(w.columnQuery))
	for r, q := range w.columnQuery {
		queries[r] = q
	}
	w.mu.Unlock()

	board := make(Board, len(role.All))
	for _, r := range role.All {
		board[r] = []Row{}
	}
	for _, row := range rows {
		r := role.ToRole(string(row.Role))
		if matchesColumn(row.UserRecord, queries[r]) {
			board[r] = append(board[r], row)
		}
	}

	coll := collate.New(language.Und)
	for _, r := range role.All {
		slices.SortStableFunc(board[r], func(a, b Row) int {
			return coll.CompareString(a.DisplayName, b.DisplayName)
		})
	}
	return board
}

// Escalations returns every non-stable user in roster order.
func (w *Workflow) Escalations() []Escalation {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := []Escalation{}
	for _, rec := range w.roster {
		if rec.Status.IsStable() {
			continue
		}
		_, saving := w.saving[rec.Email]
		target, err := rec.Status.Target()
		out = append(out, Escalation{
			Row:       Row{UserRecord: rec, Saving: saving},
			Target:    target,
			TargetErr: err,
		})
	}
	return out
}

func (w *Workflow) stableRowsLocked() []Row {
	rows := make([]Row, 0, len(w.roster))
	for _, rec := range w.roster {
		if !rec.Status.IsStable() {
			continue
		}
		_, saving := w.saving[rec.Email]
		rows = append(rows, Row{UserRecord: rec, Saving: saving})
	}
	return rows
}

func tableHaystack(rec UserRecord) string {
	r := role.ToRole(string(rec.Role))
	return strings.ToLower(strings.Join([]string{rec.DisplayName, rec.Email, r.Label(), string(r), rec.RoleID}, " "))
}

func matchesAll(hay string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(hay, tok) {
			return false
		}
	}
	return true
}

func matchesColumn(rec UserRecord, q string) bool {
	if q == "" {
		return true
	}
	for _, v := range []string{rec.DisplayName, rec.Email, rec.RoleID} {
		if v != "" && strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

func sortValue(rec UserRecord, key SortKey) string {
	switch key {
	case SortName:
		return strings.ToLower(rec.DisplayName)
	case SortEmail:
		return strings.ToLower(rec.Email)
	case SortRole:
		return string(role.ToRole(string(rec.Role)))
	}
	return ""
}
