package flow

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func newSQLiteStore(t *testing.T) *SQLiteRuleStore {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := InitSQLiteSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return NewSQLiteRuleStore(db)
}

func TestSQLiteRuleStoreRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)

	rule := storeRule("r1", "sv-1")
	if err := store.Add(rule); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(storeRule("r1", "sv-1")); err == nil {
		t.Error("adding a duplicate id should fail")
	}

	got, err := store.Get("sv-1", "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SourceQuestionID != "q1" || got.Order != 1 || !got.IsActive {
		t.Errorf("Get returned %+v", got)
	}
	if got.Condition == nil || got.Condition.Kind != CondEquals || got.Condition.Value != "yes" {
		t.Errorf("condition did not survive the round trip: %+v", got.Condition)
	}
	if got.Action.Kind != ActionHideQuestion || got.Action.TargetQuestionID != "q2" {
		t.Errorf("action did not survive the round trip: %+v", got.Action)
	}
}

func TestSQLiteRuleStoreGroupRule(t *testing.T) {
	store := newSQLiteStore(t)

	rule := storeRule("r1", "sv-1")
	rule.Condition = nil
	rule.GroupID = "g1"
	if err := store.Add(rule); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := store.Get("sv-1", "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Condition != nil {
		t.Errorf("group rules have no leaf condition, got %+v", got.Condition)
	}
	if got.GroupID != "g1" {
		t.Errorf("GroupID = %q, want g1", got.GroupID)
	}
}

func TestSQLiteRuleStoreListOrder(t *testing.T) {
	store := newSQLiteStore(t)

	r2 := storeRule("r2", "sv-1")
	r2.Order = 2
	r1 := storeRule("r1", "sv-1")
	r1.Order = 1
	for _, r := range []*Rule{r2, r1} {
		if err := store.Add(r); err != nil {
			t.Fatalf("Add %s: %v", r.ID, err)
		}
	}

	rules, err := store.List("sv-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rules) != 2 || rules[0].ID != "r1" || rules[1].ID != "r2" {
		t.Errorf("List should return evaluation order, got %+v", rules)
	}
}

func TestSQLiteRuleStoreListActive(t *testing.T) {
	store := newSQLiteStore(t)

	active := storeRule("r1", "sv-1")
	inactive := storeRule("r2", "sv-1")
	inactive.IsActive = false
	for _, r := range []*Rule{active, inactive} {
		if err := store.Add(r); err != nil {
			t.Fatalf("Add %s: %v", r.ID, err)
		}
	}

	rules, err := store.ListActive("sv-1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != "r1" {
		t.Errorf("ListActive should return only active rules, got %+v", rules)
	}
}

func TestSQLiteRuleStoreUpdateDelete(t *testing.T) {
	store := newSQLiteStore(t)

	if err := store.Add(storeRule("r1", "sv-1")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	updated := storeRule("r1", "sv-1")
	updated.IsActive = false
	updated.Order = 7
	if err := store.Update(updated); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.Get("sv-1", "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.IsActive || got.Order != 7 {
		t.Errorf("update did not stick: %+v", got)
	}

	if err := store.Delete("sv-1", "r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete("sv-1", "r1"); err == nil {
		t.Error("deleting a missing rule should fail")
	}
	if err := store.Update(updated); err == nil {
		t.Error("updating a missing rule should fail")
	}
}

func TestSQLiteRuleStoreGroups(t *testing.T) {
	store := newSQLiteStore(t)

	g := &Group{
		ID:       "g1",
		SurveyID: "sv-1",
		Operator: GroupOr,
		Children: []GroupChild{
			leaf("q1", Condition{Kind: CondEquals, Value: "yes"}),
			{GroupID: "g2"},
		},
	}
	if err := store.AddGroup(g); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}

	groups, err := store.ListGroups("sv-1")
	if err != nil {
		t.Fatalf("ListGroups: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("ListGroups returned %d groups, want 1", len(groups))
	}
	got := groups[0]
	if got.Operator != GroupOr || len(got.Children) != 2 {
		t.Errorf("group did not survive the round trip: %+v", got)
	}
	if got.Children[1].GroupID != "g2" {
		t.Errorf("nested reference lost: %+v", got.Children[1])
	}
}
