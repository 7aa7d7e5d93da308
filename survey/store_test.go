package survey

import "testing"

func TestInMemoryStoreAddGet(t *testing.T) {
	store := NewInMemoryStore()

	sv := validSurvey()
	if err := store.Add(sv); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sv.CreatedAt.IsZero() {
		t.Error("Add should stamp CreatedAt")
	}

	got, err := store.Get("sv-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Customer Feedback" || len(got.Sections) != 2 {
		t.Errorf("Get returned %+v", got)
	}
}

func TestInMemoryStoreDuplicateAdd(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.Add(validSurvey()); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(validSurvey()); err == nil {
		t.Error("adding a duplicate survey id should fail")
	}
}

func TestInMemoryStoreGetMissing(t *testing.T) {
	store := NewInMemoryStore()

	if _, err := store.Get("ghost"); err == nil {
		t.Error("Get on a missing survey should fail")
	}
}

func TestInMemoryStoreList(t *testing.T) {
	store := NewInMemoryStore()

	a := validSurvey()
	b := validSurvey()
	b.ID = "sv-2"
	for _, sv := range []*Survey{a, b} {
		if err := store.Add(sv); err != nil {
			t.Fatalf("Add %s: %v", sv.ID, err)
		}
	}

	surveys, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(surveys) != 2 {
		t.Errorf("List returned %d surveys, want 2", len(surveys))
	}
}

func TestInMemoryStoreUpdate(t *testing.T) {
	store := NewInMemoryStore()

	orig := validSurvey()
	if err := store.Add(orig); err != nil {
		t.Fatalf("Add: %v", err)
	}

	updated := validSurvey()
	updated.Title = "Renamed"
	if err := store.Update(updated); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.CreatedAt.Equal(orig.CreatedAt) {
		t.Error("Update should preserve the original CreatedAt")
	}

	got, err := store.Get("sv-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Renamed" {
		t.Errorf("Title = %q, want Renamed", got.Title)
	}
}

func TestInMemoryStoreUpdateMissing(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.Update(validSurvey()); err == nil {
		t.Error("updating a missing survey should fail")
	}
}

func TestInMemoryStoreDelete(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.Add(validSurvey()); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Delete("sv-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get("sv-1"); err == nil {
		t.Error("Get after Delete should fail")
	}
	if err := store.Delete("sv-1"); err == nil {
		t.Error("deleting twice should fail")
	}
}
