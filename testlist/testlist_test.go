package testlist_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nextest-rs/nextest-sub001/testlist"
)

func TestTestList_Runnable_FiltersSkipped(t *testing.T) {
	list := testlist.TestList{Instances: []testlist.TestInstance{
		{ID: testlist.TestInstanceID{BinaryID: "a", TestName: "t1"}, Verdict: testlist.FilterRun},
		{ID: testlist.TestInstanceID{BinaryID: "a", TestName: "t2"}, Verdict: testlist.FilterSkipByIgnored},
		{ID: testlist.TestInstanceID{BinaryID: "a", TestName: "t3"}, Verdict: testlist.FilterSkipByFilter},
		{ID: testlist.TestInstanceID{BinaryID: "a", TestName: "t4"}, Verdict: testlist.FilterRun},
	}}

	assert.Equal(t, 4, list.Len())
	runnable := list.Runnable()
	assert.Len(t, runnable, 2)
	assert.Equal(t, "t1", runnable[0].ID.TestName)
	assert.Equal(t, "t4", runnable[1].ID.TestName)
}

func TestSetupScript_Matches(t *testing.T) {
	unfiltered := testlist.SetupScript{Name: "global"}
	assert.True(t, unfiltered.Matches(testlist.TestInstance{}))

	filtered := testlist.SetupScript{
		Name:   "db-only",
		Filter: func(inst testlist.TestInstance) bool { return inst.Settings.TestGroup == "db" },
	}
	assert.True(t, filtered.Matches(testlist.TestInstance{Settings: testlist.SettingsModel{TestGroup: "db"}}))
	assert.False(t, filtered.Matches(testlist.TestInstance{Settings: testlist.SettingsModel{TestGroup: "other"}}))
}
