package store

import (
	"strings"
	"time"

	"reelsmith/internal/stage"
)

// OutputStatus represents the lifecycle of a video production.
type OutputStatus string

const (
	OutputDraft      OutputStatus = "draft"
	OutputInProgress OutputStatus = "in_progress"
	OutputCompleted  OutputStatus = "completed"
	OutputFailed     OutputStatus = "failed"
	OutputCancelled  OutputStatus = "cancelled"
)

// ParseOutputStatus converts a string into a known OutputStatus.
func ParseOutputStatus(value string) (OutputStatus, bool) {
	normalized := OutputStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case OutputDraft, OutputInProgress, OutputCompleted, OutputFailed, OutputCancelled:
		return normalized, true
	}
	return "", false
}

// Style holds the visual style descriptors an output's style anchor is
// derived from.
type Style struct {
	Lighting    string
	Atmosphere  string
	Composition string
	Base        string
}

// Output represents one video-in-production persisted in SQLite.
type Output struct {
	ID             string
	Title          string
	Brief          string
	AspectRatio    string
	TargetSeconds  int
	Voice          string
	WordsPerMinute int
	Style          Style
	Status         OutputStatus
	ErrorMessage   string
	// CorrectionMode unlocks images and motion for manual redo without
	// discarding approved narration.
	CorrectionMode bool
	OutlineText    string
	DraftText      string
	EditPlanJSON   string
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ImageStatus tracks a scene's image generation outcome.
type ImageStatus string

const (
	ImagePending    ImageStatus = "pending"
	ImageGenerated  ImageStatus = "generated"
	ImageRestricted ImageStatus = "restricted"
	ImageError      ImageStatus = "error"
)

// Scene is one narrative beat belonging to exactly one Output. Order is
// contiguous and unique within the output.
type Scene struct {
	ID               int64
	OutputID         string
	Order            int
	Narration        string
	VisualDesc       string
	EndVisualDesc    string
	AudioDesc        string
	Environment      string
	CharacterRef     string
	ImageStatus      ImageStatus
	RestrictedReason string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AssetKind distinguishes generated stills from motion clips.
type AssetKind string

const (
	AssetImage  AssetKind = "image"
	AssetMotion AssetKind = "motion"
)

// AssetRole positions an image asset within its scene.
type AssetRole string

const (
	RoleStart AssetRole = "start"
	RoleEnd   AssetRole = "end"
)

// Asset is one generated image or motion clip. At most one asset per
// (scene, kind, role) carries Selected and drives rendering.
type Asset struct {
	ID          int64
	SceneID     int64
	Kind        AssetKind
	Role        AssetRole
	Selected    bool
	Media       StoredMedia
	Width       int
	Height      int
	DurationMS  int64
	Prompt      string
	Provider    string
	DerivedFrom int64
	CreatedAt   time.Time
}

// TrackType classifies audio tracks on the output timeline.
type TrackType string

const (
	TrackNarration       TrackType = "scene_narration"
	TrackSFX             TrackType = "scene_sfx"
	TrackBackgroundMusic TrackType = "background_music"
	TrackMusicEvent      TrackType = "music_event"
)

// AudioTrack belongs to an Output and optionally to one Scene. A narration
// track's measured duration is the authoritative clip length for its scene.
type AudioTrack struct {
	ID            int64
	OutputID      string
	SceneID       int64 // zero when the track is output-wide
	Type          TrackType
	Media         StoredMedia
	DurationMS    int64
	OffsetMS      int64 // music events only, absolute output timeline
	AlignmentJSON string
	CreatedAt     time.Time
}

// StageGate is one (output, stage) approval record.
type StageGate struct {
	OutputID   string
	Stage      stage.Stage
	Status     stage.GateStatus
	Feedback   string
	ExecutedAt *time.Time
	ReviewedAt *time.Time
}

// RenderOptions captures the rendering switches recorded with an artifact.
type RenderOptions struct {
	Captions     bool    `json:"captions"`
	CaptionStyle string  `json:"caption_style,omitempty"`
	Logo         bool    `json:"logo"`
	Stingers     bool    `json:"stingers"`
	MusicGain    float64 `json:"music_gain,omitempty"`
	EventGain    float64 `json:"event_gain,omitempty"`
}

// RenderArtifact is the final encoded file for an output, at most one per
// output, overwritten on re-render.
type RenderArtifact struct {
	OutputID    string
	Media       StoredMedia
	MediaType   string
	ByteSize    int64
	OptionsJSON string
	CreatedAt   time.Time
}

// CostEntry is one row in the cost ledger.
type CostEntry struct {
	ID           int64
	OutputID     string
	Resource     string
	Provider     string
	Model        string
	Units        float64
	AmountUSD    float64
	MetadataJSON string
	CreatedAt    time.Time
}
