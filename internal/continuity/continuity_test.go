package continuity

import (
	"strings"
	"testing"

	"reelsmith/internal/store"
)

type fakeSource struct {
	sceneRefs     map[int64][]byte
	characterRefs map[string][]byte
}

func (f *fakeSource) SceneReference(sceneID int64) ([]byte, bool) {
	data, ok := f.sceneRefs[sceneID]
	return data, ok
}

func (f *fakeSource) CharacterReference(id string) ([]byte, bool) {
	data, ok := f.characterRefs[id]
	return data, ok
}

func TestResolveExplicitReferenceWins(t *testing.T) {
	source := &fakeSource{
		sceneRefs:     map[int64][]byte{7: []byte("explicit")},
		characterRefs: map[string][]byte{"hero": []byte("hero-sheet")},
	}
	scene := &store.Scene{ID: 7, CharacterRef: "hero", Environment: "kitchen"}
	predecessor := &store.Scene{ID: 6, Environment: "kitchen"}

	ref := Resolve(scene, predecessor, []byte("prev-image"), source)
	if ref == nil || ref.Origin != OriginExplicit {
		t.Fatalf("expected explicit reference, got %+v", ref)
	}
	if ref.Weight != StrongWeight {
		t.Fatalf("expected strong weight, got %f", ref.Weight)
	}
}

func TestResolveCharacterReference(t *testing.T) {
	source := &fakeSource{characterRefs: map[string][]byte{"hero": []byte("hero-sheet")}}
	scene := &store.Scene{ID: 7, CharacterRef: "hero"}

	ref := Resolve(scene, nil, nil, source)
	if ref == nil || ref.Origin != OriginCharacter {
		t.Fatalf("expected character reference, got %+v", ref)
	}
	if ref.Weight != StrongWeight {
		t.Fatalf("expected strong weight, got %f", ref.Weight)
	}
}

func TestResolvePredecessorRequiresSameEnvironment(t *testing.T) {
	scene := &store.Scene{ID: 2, Environment: "harbor"}
	samePred := &store.Scene{ID: 1, Environment: "harbor", VisualDesc: "fishing boats at anchor. Gulls circle overhead."}
	otherPred := &store.Scene{ID: 1, Environment: "forest"}

	ref := Resolve(scene, samePred, []byte("prev"), nil)
	if ref == nil || ref.Origin != OriginPredecessor {
		t.Fatalf("expected predecessor reference, got %+v", ref)
	}
	if ref.Weight != EnvironmentWeight {
		t.Fatalf("expected environment weight, got %f", ref.Weight)
	}
	if ref.Hint != "fishing boats at anchor" {
		t.Fatalf("expected first-sentence hint, got %q", ref.Hint)
	}

	if ref := Resolve(scene, otherPred, []byte("prev"), nil); ref != nil {
		t.Fatalf("environment mismatch must not resolve, got %+v", ref)
	}

	blank := &store.Scene{ID: 2}
	blankPred := &store.Scene{ID: 1}
	if ref := Resolve(blank, blankPred, []byte("prev"), nil); ref != nil {
		t.Fatalf("empty environment tags must not resolve, got %+v", ref)
	}
}

func TestResolveHintTruncatesLongDescriptions(t *testing.T) {
	long := strings.Repeat("endless rolling dunes ", 20)
	scene := &store.Scene{ID: 2, Environment: "desert"}
	pred := &store.Scene{ID: 1, Environment: "desert", VisualDesc: long}

	ref := Resolve(scene, pred, []byte("prev"), nil)
	if ref == nil {
		t.Fatal("expected predecessor reference")
	}
	if ref.Hint == "" || len(ref.Hint) > 160 {
		t.Fatalf("hint length %d outside cap", len(ref.Hint))
	}
}

func TestResolveWithoutAnySource(t *testing.T) {
	scene := &store.Scene{ID: 3, Environment: "cave"}
	if ref := Resolve(scene, nil, nil, nil); ref != nil {
		t.Fatalf("expected no reference, got %+v", ref)
	}
}

func TestDependsOnPredecessor(t *testing.T) {
	scene := &store.Scene{ID: 2, Environment: "harbor"}
	predecessor := &store.Scene{ID: 1, Environment: "harbor"}

	if !DependsOnPredecessor(scene, predecessor, nil) {
		t.Fatal("same-environment scene must wait for its predecessor")
	}

	source := &fakeSource{sceneRefs: map[int64][]byte{2: []byte("explicit")}}
	if DependsOnPredecessor(scene, predecessor, source) {
		t.Fatal("explicit reference lifts the predecessor dependency")
	}

	other := &store.Scene{ID: 2, Environment: "forest"}
	if DependsOnPredecessor(other, predecessor, nil) {
		t.Fatal("environment change must not serialize")
	}
}

func TestBuildPrompt(t *testing.T) {
	style := store.Style{
		Base:        "hand-painted gouache",
		Lighting:    "golden hour",
		Atmosphere:  "calm",
		Composition: "wide establishing shots",
	}

	prompt := BuildPrompt(style, nil, "a fisherman mends a net on the dock")
	if !strings.HasPrefix(prompt, "hand-painted gouache, golden hour, calm, wide establishing shots") {
		t.Fatalf("expected style anchor prefix, got %q", prompt)
	}
	if !strings.HasSuffix(prompt, "a fisherman mends a net on the dock") {
		t.Fatalf("expected scene description suffix, got %q", prompt)
	}

	ref := &Reference{Origin: OriginPredecessor, Weight: EnvironmentWeight, Hint: "a fisherman mends a net on the dock"}
	withHint := BuildPrompt(style, ref, "the fisherman stands up")
	if !strings.Contains(withHint, "Continue the visual setting") {
		t.Fatalf("expected continuity hint, got %q", withHint)
	}
	if !strings.Contains(withHint, "(a fisherman mends a net on the dock)") {
		t.Fatalf("expected predecessor excerpt in hint, got %q", withHint)
	}

	explicit := &Reference{Origin: OriginExplicit, Weight: StrongWeight}
	withoutHint := BuildPrompt(style, explicit, "the fisherman stands up")
	if strings.Contains(withoutHint, "Continue the visual setting") {
		t.Fatalf("explicit references need no continuity hint, got %q", withoutHint)
	}
}
