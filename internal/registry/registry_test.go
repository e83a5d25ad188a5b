package registry

import "testing"

func TestDeclarationOrder(t *testing.T) {
	reg := New(
		Descriptor{Name: "beta"},
		Descriptor{Name: "alpha"},
		Descriptor{Name: "gamma"},
	)

	list := reg.List()
	if len(list) != 3 {
		t.Fatalf("got %d tools, want 3", len(list))
	}
	// Order is declaration order, not alphabetical — it drives tie-breaking.
	want := []string{"beta", "alpha", "gamma"}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("position %d: got %q, want %q", i, list[i].Name, name)
		}
	}
}

func TestGetAndHas(t *testing.T) {
	reg := New(Descriptor{Name: "add_note", Description: "notes"})

	d, ok := reg.Get("add_note")
	if !ok {
		t.Fatal("expected add_note to be registered")
	}
	if d.Description != "notes" {
		t.Errorf("got description %q, want %q", d.Description, "notes")
	}

	if reg.Has("nope") {
		t.Error("Has returned true for unregistered tool")
	}
	if _, ok := reg.Get("nope"); ok {
		t.Error("Get returned ok for unregistered tool")
	}
}

func TestBuiltinCatalog(t *testing.T) {
	reg := Builtin()

	want := []string{"add_note", "search_docs", "simple_math"}
	list := reg.List()
	if len(list) != len(want) {
		t.Fatalf("got %d builtin tools, want %d", len(list), len(want))
	}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("position %d: got %q, want %q", i, list[i].Name, name)
		}
		if len(list[i].Triggers) == 0 {
			t.Errorf("%s has no trigger phrases", name)
		}
	}
}
