package workflow_test

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velia-hr/portal/internal/role"
	"github.com/velia-hr/portal/internal/workflow"
)

func sampleRoster() []workflow.UserRecord {
	return []workflow.UserRecord{
		rec("Ann Lee", "ann@x.com", role.HR, "stable"),
		rec("Bo Ray", "bo@x.com", role.Admin, "stable"),
		rec("cara Diaz", "cara@x.com", role.HR, "stable"),
		rec("Dee Moss", "dee@x.com", role.Simple, "To manager"),
		rec("Eli Park", "eli@x.com", role.Manager, "stable"),
		rec("Abe Stone", "abe@x.com", role.Facilitator, "stable"),
	}
}

func TestTable_FilterByName(t *testing.T) {
	wf, _ := setup(t,
		rec("Ann Lee", "ann@x.com", role.HR, "stable"),
		rec("Bo Ray", "bo@x.com", role.Admin, "stable"),
	)

	wf.SetTableQuery("ann")
	wf.SubmitTableQuery()
	rows := wf.Table()
	require.Len(t, rows, 1)
	assert.Equal(t, "ann@x.com", rows[0].Email)

	wf.SetTableQuery("zzz")
	wf.SubmitTableQuery()
	assert.Empty(t, wf.Table())
}

func TestTable_MultiTokenAndMatch(t *testing.T) {
	wf, _ := setup(t, sampleRoster()...)

	wf.SetTableQuery("  HR   lee ")
	wf.SubmitTableQuery()
	assert.Equal(t, []string{"ann@x.com"}, emails(wf.Table()))

	wf.SetTableQuery("facilitator")
	wf.SubmitTableQuery()
	assert.Equal(t, []string{"abe@x.com"}, emails(wf.Table()))

	wf.SetTableQuery("rid-bo")
	wf.SubmitTableQuery()
	assert.Equal(t, []string{"bo@x.com"}, emails(wf.Table()))
}

func TestTable_ExcludesEscalatingUsers(t *testing.T) {
	wf, _ := setup(t, sampleRoster()...)

	assert.NotContains(t, emails(wf.Table()), "dee@x.com")
	esc := wf.Escalations()
	require.Len(t, esc, 1)
	assert.Equal(t, "dee@x.com", esc[0].Email)
	assert.Equal(t, role.Manager, esc[0].Target)
}

func TestTable_QueryIsDebounced(t *testing.T) {
	wf, _ := setup(t, sampleRoster()...)

	wf.SetTableQuery("a")
	wf.SetTableQuery("an")
	wf.SetTableQuery("ann")
	assert.Equal(t, "", wf.TableQuery(), "query must not apply before the debounce interval")
	assert.Len(t, wf.Table(), 5)

	require.Eventually(t, func() bool {
		return wf.TableQuery() == "ann"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"ann@x.com"}, emails(wf.Table()))
}

func TestToggleSort(t *testing.T) {
	wf, _ := setup(t, sampleRoster()...)

	s := wf.ToggleSort(workflow.SortRole)
	assert.Equal(t, workflow.Sort{Key: workflow.SortRole, Direction: workflow.Ascending}, s)
	asc := emails(wf.Table())

	s = wf.ToggleSort(workflow.SortRole)
	assert.Equal(t, workflow.Descending, s.Direction)
	desc := emails(wf.Table())

	reversed := slices.Clone(asc)
	slices.Reverse(reversed)
	assert.Equal(t, reversed, desc)

	s = wf.ToggleSort(workflow.SortEmail)
	assert.Equal(t, workflow.Sort{Key: workflow.SortEmail, Direction: workflow.Ascending}, s)
}

func TestTable_SortIsStable(t *testing.T) {
	wf, _ := setup(t, sampleRoster()...)

	wf.ToggleSort(workflow.SortRole)
	// ann and cara share role hr and keep roster order.
	assert.Equal(t, []string{"bo@x.com", "abe@x.com", "ann@x.com", "cara@x.com", "eli@x.com"}, emails(wf.Table()))
}

func TestTable_SortByNameIsCaseInsensitive(t *testing.T) {
	wf, _ := setup(t, sampleRoster()...)

	wf.ToggleSort(workflow.SortName)
	assert.Equal(t, []string{"abe@x.com", "ann@x.com", "bo@x.com", "cara@x.com", "eli@x.com"}, emails(wf.Table()))
}

func TestTotals_CountsStableUsersOnly(t *testing.T) {
	wf, _ := setup(t, sampleRoster()...)

	totals := wf.Totals()

	assert.Len(t, totals, len(role.All))
	assert.Equal(t, 2, totals[role.HR])
	assert.Equal(t, 1, totals[role.Admin])
	assert.Equal(t, 1, totals[role.Manager])
	assert.Equal(t, 1, totals[role.Facilitator])
	assert.Equal(t, 0, totals[role.Simple], "escalating users are not counted")
}

func TestBoard_AllGroupsPresentAndSorted(t *testing.T) {
	wf, _ := setup(t,
		rec("Zed Hart", "zed@x.com", role.HR, "stable"),
		rec("ann Lee", "ann@x.com", role.HR, "stable"),
		rec("Mia Cole", "mia@x.com", role.HR, "stable"),
	)

	board := wf.Board()

	assert.Len(t, board, len(role.All))
	for _, r := range role.All {
		assert.NotNil(t, board[r])
	}
	assert.Equal(t, []string{"ann@x.com", "mia@x.com", "zed@x.com"}, emails(board[role.HR]))
}

func TestBoard_ColumnFilterIsPerGroup(t *testing.T) {
	wf, _ := setup(t, sampleRoster()...)

	wf.SetColumnQuery(role.HR, "CARA")
	board := wf.Board()

	assert.Equal(t, []string{"cara@x.com"}, emails(board[role.HR]))
	assert.Equal(t, []string{"bo@x.com"}, emails(board[role.Admin]), "other groups are unaffected")
}

func TestBoard_TotalsInvariant(t *testing.T) {
	wf, _ := setup(t, sampleRoster()...)

	board := wf.Board()
	totals := wf.Totals()
	for _, r := range role.All {
		assert.Equal(t, totals[r], len(board[r]), "empty filters show every stable user of %s", r)
	}

	wf.SetColumnQuery(role.HR, "ann")
	wf.SetColumnQuery(role.Admin, "nobody")
	board = wf.Board()
	for _, r := range role.All {
		assert.LessOrEqual(t, len(board[r]), totals[r])
	}
}

func TestParseSortKey(t *testing.T) {
	k, ok := workflow.ParseSortKey("Display_Name")
	assert.True(t, ok)
	assert.Equal(t, workflow.SortName, k)

	_, ok = workflow.ParseSortKey("salary")
	assert.False(t, ok)
}
