package stage

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage identifies one step in the fixed production sequence.
type Stage string

const (
	Outline         Stage = "outline"
	Writer          Stage = "writer"
	Script          Stage = "script"
	QualityReview   Stage = "quality_review"
	Images          Stage = "images"
	BackgroundMusic Stage = "background_music"
	SoundEffects    Stage = "sound_effects"
	NarrationAudio  Stage = "narration_audio"
	MusicEvents     Stage = "music_events"
	Motion          Stage = "motion"
	Render          Stage = "render"
)

// sequence is the single source of truth for stage order. Gate transitions,
// precondition checks, and cascading resets all consult this list rather
// than hard-coding stage comparisons.
var sequence = []Stage{
	Outline,
	Writer,
	Script,
	QualityReview,
	Images,
	BackgroundMusic,
	SoundEffects,
	NarrationAudio,
	MusicEvents,
	Motion,
	Render,
}

var indexOf = func() map[Stage]int {
	m := make(map[Stage]int, len(sequence))
	for i, s := range sequence {
		m[s] = i
	}
	return m
}()

// Sequence returns the ordered list of stages.
func Sequence() []Stage {
	cp := make([]Stage, len(sequence))
	copy(cp, sequence)
	return cp
}

// Parse converts a string into a known Stage.
func Parse(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(strings.ReplaceAll(value, "-", "_"))))
	if _, ok := indexOf[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// Index returns the zero-based position of a stage in the sequence, or -1
// for unknown stages.
func Index(s Stage) int {
	if i, ok := indexOf[s]; ok {
		return i
	}
	return -1
}

// Before returns every stage earlier in the sequence.
func Before(s Stage) []Stage {
	i := Index(s)
	if i <= 0 {
		return nil
	}
	cp := make([]Stage, i)
	copy(cp, sequence[:i])
	return cp
}

// After returns every stage later in the sequence.
func After(s Stage) []Stage {
	i := Index(s)
	if i < 0 || i+1 >= len(sequence) {
		return nil
	}
	cp := make([]Stage, len(sequence)-i-1)
	copy(cp, sequence[i+1:])
	return cp
}

// Final reports whether s is the last stage in the sequence.
func Final(s Stage) bool {
	return Index(s) == len(sequence)-1
}

var titleCaser = cases.Title(language.English)

// Label returns the human-readable form of a stage name.
func (s Stage) Label() string {
	return titleCaser.String(strings.ReplaceAll(string(s), "_", " "))
}

// GateStatus is the approval state of one (output, stage) pair.
type GateStatus string

const (
	GateNotStarted GateStatus = "not_started"
	GateGenerating GateStatus = "generating"
	GateApproved   GateStatus = "approved"
	GateRejected   GateStatus = "rejected"
)

// ParseGateStatus converts a string into a known GateStatus.
func ParseGateStatus(value string) (GateStatus, bool) {
	normalized := GateStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case GateNotStarted, GateGenerating, GateApproved, GateRejected:
		return normalized, true
	}
	return "", false
}
