// Package continuity keeps independently generated scene images coherent.
// Each scene's image request may carry one reference image, resolved in
// strict priority order, and a prompt assembled from the output's style
// anchor plus the scene's own description.
package continuity

import (
	"strings"

	"reelsmith/internal/store"
)

// Reference weights. Explicit and character references anchor hard;
// predecessor images only nudge, since they carry composition the new scene
// should not copy outright.
const (
	StrongWeight      = 0.85
	EnvironmentWeight = 0.45
)

// Origin labels where a resolved reference came from.
type Origin string

const (
	OriginExplicit    Origin = "explicit"
	OriginCharacter   Origin = "character"
	OriginPredecessor Origin = "predecessor"
)

// Reference is a resolved continuity reference for one image request.
type Reference struct {
	Data   []byte
	Weight float64
	Origin Origin
	// Hint is a short excerpt of the predecessor's visual description,
	// set only for predecessor references.
	Hint string
}

// Source supplies the reference images the resolver chooses between.
type Source interface {
	// SceneReference returns a user-supplied image explicitly attached to
	// the scene, if any.
	SceneReference(sceneID int64) ([]byte, bool)
	// CharacterReference returns the reference image for a recurring
	// character id, if any.
	CharacterReference(id string) ([]byte, bool)
}

// Resolve picks at most one reference image for a scene. Priority: an
// explicit scene reference, then a recurring character's reference, then
// the predecessor scene's generated image, the last only when both scenes
// carry the same non-empty environment tag. Continuity is
// environment-scoped: a location change must not bleed the previous
// location into the new one.
func Resolve(scene *store.Scene, predecessor *store.Scene, predecessorImage []byte, source Source) *Reference {
	if scene == nil {
		return nil
	}
	if source != nil {
		if data, ok := source.SceneReference(scene.ID); ok && len(data) > 0 {
			return &Reference{Data: data, Weight: StrongWeight, Origin: OriginExplicit}
		}
		if id := strings.TrimSpace(scene.CharacterRef); id != "" {
			if data, ok := source.CharacterReference(id); ok && len(data) > 0 {
				return &Reference{Data: data, Weight: StrongWeight, Origin: OriginCharacter}
			}
		}
	}
	if predecessor != nil && len(predecessorImage) > 0 && sameEnvironment(scene, predecessor) {
		return &Reference{
			Data:   predecessorImage,
			Weight: EnvironmentWeight,
			Origin: OriginPredecessor,
			Hint:   excerpt(predecessor.VisualDesc),
		}
	}
	return nil
}

// hintMaxLen caps the continuity excerpt so a long predecessor description
// cannot crowd out the scene's own prompt.
const hintMaxLen = 160

// excerpt returns the first sentence of a description, without its closing
// punctuation, capped at hintMaxLen characters.
func excerpt(desc string) string {
	desc = strings.TrimSpace(desc)
	if idx := strings.IndexAny(desc, ".!?"); idx >= 0 {
		desc = desc[:idx]
	}
	if len(desc) > hintMaxLen {
		desc = strings.TrimSpace(desc[:hintMaxLen])
	}
	return desc
}

func sameEnvironment(a, b *store.Scene) bool {
	env := strings.TrimSpace(a.Environment)
	return env != "" && env == strings.TrimSpace(b.Environment)
}

// DependsOnPredecessor reports whether a scene's image generation must wait
// for the preceding scene's image. Same-environment runs are serialized for
// exactly this reason; everything else fans out freely.
func DependsOnPredecessor(scene, predecessor *store.Scene, source Source) bool {
	if scene == nil || predecessor == nil {
		return false
	}
	if source != nil {
		if _, ok := source.SceneReference(scene.ID); ok {
			return false
		}
		if id := strings.TrimSpace(scene.CharacterRef); id != "" {
			if _, ok := source.CharacterReference(id); ok {
				return false
			}
		}
	}
	return sameEnvironment(scene, predecessor)
}

// BuildPrompt assembles the image prompt: the output's style anchor first,
// an optional continuity hint, then the scene's visual description.
func BuildPrompt(style store.Style, ref *Reference, visualDesc string) string {
	var parts []string
	if anchor := StyleAnchor(style); anchor != "" {
		parts = append(parts, anchor)
	}
	if ref != nil && ref.Origin == OriginPredecessor {
		hint := "Continue the visual setting of the reference image; keep location, palette, and lighting consistent."
		if ref.Hint != "" {
			hint = "Continue the visual setting of the previous scene (" + ref.Hint + "); keep location, palette, and lighting consistent."
		}
		parts = append(parts, hint)
	}
	if desc := strings.TrimSpace(visualDesc); desc != "" {
		parts = append(parts, desc)
	}
	return strings.Join(parts, " ")
}

// StyleAnchor flattens the output's style descriptors into one stable
// prompt prefix shared by every scene.
func StyleAnchor(style store.Style) string {
	var parts []string
	for _, part := range []string{style.Base, style.Lighting, style.Atmosphere, style.Composition} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, ", ")
}
