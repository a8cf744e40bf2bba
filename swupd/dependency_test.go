package swupd

import (
	"context"
	"testing"
)

func TestRecurseManifestAll(t *testing.T) {
	mom := makeMoM(map[string][]string{
		"os-core": nil,
		"editors": {"os-core"},
	})
	subs := Subscriptions{{Name: "os-core"}, {Name: "editors"}}

	manifests, err := RecurseManifest(context.Background(), nil, mom, subs, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(manifests) != 2 {
		t.Fatalf("expected 2 manifests, got %d", len(manifests))
	}
}

func TestRecurseManifestInvalidBundle(t *testing.T) {
	mom := makeMoM(map[string][]string{"os-core": nil})
	subs := Subscriptions{{Name: "nonexistent"}}

	_, err := RecurseManifest(context.Background(), nil, mom, subs, "", false)
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*InvalidBundleError); !ok {
		t.Fatalf("got %T, want *InvalidBundleError", err)
	}
}

func TestRecurseManifestFilterName(t *testing.T) {
	mom := makeMoM(map[string][]string{
		"os-core": nil,
		"editors": {"os-core"},
		"ide":     {"editors"},
	})
	subs := Subscriptions{{Name: "os-core"}, {Name: "editors"}, {Name: "ide"}}

	manifests, err := RecurseManifest(context.Background(), nil, mom, subs, "ide", false)
	if err != nil {
		t.Fatal(err)
	}

	names := map[string]bool{}
	for _, m := range manifests {
		names[m.Name] = true
	}
	if !names["ide"] || !names["editors"] || !names["os-core"] {
		t.Errorf("expected ide's full closure, got %v", names)
	}
	if len(manifests) != 3 {
		t.Errorf("expected exactly 3 manifests in ide's closure, got %d", len(manifests))
	}
}
