package store_test

import (
	"context"
	"errors"
	"testing"

	"reelsmith/internal/services"
	"reelsmith/internal/stage"
	"reelsmith/internal/store"
	"reelsmith/internal/testsupport"
)

func TestCreateOutputSeedsGates(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	output := testsupport.NewOutput(t, st, "volcano facts")

	if output.ID == "" {
		t.Fatal("expected generated output ID")
	}
	if output.Status != store.OutputDraft {
		t.Fatalf("expected draft status, got %s", output.Status)
	}

	gates, err := st.ListGates(context.Background(), output.ID)
	if err != nil {
		t.Fatalf("ListGates: %v", err)
	}
	if len(gates) != len(stage.Sequence()) {
		t.Fatalf("expected %d gates, got %d", len(stage.Sequence()), len(gates))
	}
	for _, gate := range gates {
		if gate.Status != stage.GateNotStarted {
			t.Fatalf("gate %s: expected not_started, got %s", gate.Stage, gate.Status)
		}
	}
}

func TestResolveOutputIDPrefix(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	output := testsupport.NewOutput(t, st, "deep sea")
	ctx := context.Background()

	id, err := st.ResolveOutputID(ctx, output.ID[:8])
	if err != nil {
		t.Fatalf("ResolveOutputID: %v", err)
	}
	if id != output.ID {
		t.Fatalf("expected %s, got %s", output.ID, id)
	}

	if _, err := st.ResolveOutputID(ctx, "zzzzzzzz"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown prefix, got %v", err)
	}
}

func TestReplaceScenesAssignsContiguousOrder(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	output := testsupport.NewOutput(t, st, "glass blowing")
	ctx := context.Background()

	testsupport.SeedScenes(t, st, output.ID, 3)
	scenes, err := st.ListScenes(ctx, output.ID)
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	if len(scenes) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(scenes))
	}
	for i, scene := range scenes {
		if scene.Order != i {
			t.Fatalf("scene %d: expected order %d, got %d", i, i, scene.Order)
		}
		if scene.ImageStatus != store.ImagePending {
			t.Fatalf("scene %d: expected pending image status, got %s", i, scene.ImageStatus)
		}
	}

	// A fresh breakdown replaces the previous one entirely.
	testsupport.SeedScenes(t, st, output.ID, 2)
	scenes, err = st.ListScenes(ctx, output.ID)
	if err != nil {
		t.Fatalf("ListScenes after replace: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("expected 2 scenes after replace, got %d", len(scenes))
	}
}

func TestReplaceScenesCascadesToAssets(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	output := testsupport.NewOutput(t, st, "old growth forest")
	ctx := context.Background()

	scenes := testsupport.SeedScenes(t, st, output.ID, 2)
	asset := &store.Asset{
		SceneID:  scenes[0].ID,
		Kind:     store.AssetImage,
		Role:     store.RoleStart,
		Selected: true,
		Media:    store.MediaFromBlob([]byte{0x89, 0x50, 0x4e, 0x47}),
		Width:    1080,
		Height:   1920,
	}
	if err := st.AddAsset(ctx, asset); err != nil {
		t.Fatalf("AddAsset: %v", err)
	}

	testsupport.SeedScenes(t, st, output.ID, 2)
	if _, err := st.GetScene(ctx, scenes[0].ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected old scene gone, got %v", err)
	}
	newScenes, err := st.ListScenes(ctx, output.ID)
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	assets, err := st.ListAssets(ctx, newScenes[0].ID)
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	if len(assets) != 0 {
		t.Fatalf("expected assets cascaded away, found %d", len(assets))
	}
}

func TestAddAssetSingleSelection(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	output := testsupport.NewOutput(t, st, "night market")
	ctx := context.Background()
	scenes := testsupport.SeedScenes(t, st, output.ID, 1)

	first := &store.Asset{
		SceneID:  scenes[0].ID,
		Kind:     store.AssetImage,
		Role:     store.RoleStart,
		Selected: true,
		Media:    store.MediaFromBlob([]byte{1}),
	}
	second := &store.Asset{
		SceneID:  scenes[0].ID,
		Kind:     store.AssetImage,
		Role:     store.RoleStart,
		Selected: true,
		Media:    store.MediaFromBlob([]byte{2}),
	}
	if err := st.AddAsset(ctx, first); err != nil {
		t.Fatalf("AddAsset first: %v", err)
	}
	if err := st.AddAsset(ctx, second); err != nil {
		t.Fatalf("AddAsset second: %v", err)
	}

	selected, err := st.SelectedAsset(ctx, scenes[0].ID, store.AssetImage, store.RoleStart)
	if err != nil {
		t.Fatalf("SelectedAsset: %v", err)
	}
	if selected.ID != second.ID {
		t.Fatalf("expected newest asset selected, got %d want %d", selected.ID, second.ID)
	}

	if err := st.SelectAsset(ctx, first.ID); err != nil {
		t.Fatalf("SelectAsset: %v", err)
	}
	selected, err = st.SelectedAsset(ctx, scenes[0].ID, store.AssetImage, store.RoleStart)
	if err != nil {
		t.Fatalf("SelectedAsset after switch: %v", err)
	}
	if selected.ID != first.ID {
		t.Fatalf("expected switched selection, got %d want %d", selected.ID, first.ID)
	}
}

func TestReplaceSceneTrackSupersedes(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	output := testsupport.NewOutput(t, st, "clockmaking")
	ctx := context.Background()
	scenes := testsupport.SeedScenes(t, st, output.ID, 1)

	for _, duration := range []int64{4200, 3900} {
		track := &store.AudioTrack{
			OutputID:   output.ID,
			SceneID:    scenes[0].ID,
			Type:       store.TrackNarration,
			Media:      store.MediaFromBlob([]byte{0xff}),
			DurationMS: duration,
		}
		if err := st.ReplaceSceneTrack(ctx, track); err != nil {
			t.Fatalf("ReplaceSceneTrack: %v", err)
		}
	}

	track, err := st.SceneTrack(ctx, scenes[0].ID, store.TrackNarration)
	if err != nil {
		t.Fatalf("SceneTrack: %v", err)
	}
	if track.DurationMS != 3900 {
		t.Fatalf("expected latest track, got duration %d", track.DurationMS)
	}

	tracks, err := st.ListTracks(ctx, output.ID, store.TrackNarration)
	if err != nil {
		t.Fatalf("ListTracks: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected single narration track, got %d", len(tracks))
	}
}

func TestApproveFinalStageCompletesOutput(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	output := testsupport.NewOutput(t, st, "paper folding")
	ctx := context.Background()

	for _, s := range stage.Sequence() {
		if err := st.MarkGenerating(ctx, output.ID, s); err != nil {
			t.Fatalf("MarkGenerating %s: %v", s, err)
		}
		if err := st.ApproveStage(ctx, output.ID, s); err != nil {
			t.Fatalf("ApproveStage %s: %v", s, err)
		}
	}

	refreshed, err := st.GetOutput(ctx, output.ID)
	if err != nil {
		t.Fatalf("GetOutput: %v", err)
	}
	if refreshed.Status != store.OutputCompleted {
		t.Fatalf("expected completed output, got %s", refreshed.Status)
	}
	if refreshed.CompletedAt == nil {
		t.Fatal("expected completed_at set")
	}
}

func TestRejectStageResetsLaterGates(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	output := testsupport.NewOutput(t, st, "lighthouses")
	ctx := context.Background()

	for _, s := range []stage.Stage{stage.Outline, stage.Writer, stage.Script} {
		if err := st.MarkGenerating(ctx, output.ID, s); err != nil {
			t.Fatalf("MarkGenerating %s: %v", s, err)
		}
		if err := st.ApproveStage(ctx, output.ID, s); err != nil {
			t.Fatalf("ApproveStage %s: %v", s, err)
		}
	}

	if err := st.RejectStage(ctx, output.ID, stage.Writer, "tone is too dry"); err != nil {
		t.Fatalf("RejectStage: %v", err)
	}

	gates, err := st.ListGates(ctx, output.ID)
	if err != nil {
		t.Fatalf("ListGates: %v", err)
	}
	for _, gate := range gates {
		switch {
		case gate.Stage == stage.Outline:
			if gate.Status != stage.GateApproved {
				t.Fatalf("outline: expected approved, got %s", gate.Status)
			}
		case gate.Stage == stage.Writer:
			if gate.Status != stage.GateRejected {
				t.Fatalf("writer: expected rejected, got %s", gate.Status)
			}
			if gate.Feedback != "tone is too dry" {
				t.Fatalf("writer: expected feedback preserved, got %q", gate.Feedback)
			}
		default:
			if gate.Status != stage.GateNotStarted {
				t.Fatalf("%s: expected not_started after cascade, got %s", gate.Stage, gate.Status)
			}
		}
	}
}

func TestRejectAfterCompletionReopensOutput(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	output := testsupport.NewOutput(t, st, "tide pools")
	ctx := context.Background()

	for _, s := range stage.Sequence() {
		if err := st.MarkGenerating(ctx, output.ID, s); err != nil {
			t.Fatalf("MarkGenerating %s: %v", s, err)
		}
		if err := st.ApproveStage(ctx, output.ID, s); err != nil {
			t.Fatalf("ApproveStage %s: %v", s, err)
		}
	}

	if err := st.RejectStage(ctx, output.ID, stage.Images, "reopen visuals"); err != nil {
		t.Fatalf("RejectStage: %v", err)
	}

	refreshed, err := st.GetOutput(ctx, output.ID)
	if err != nil {
		t.Fatalf("GetOutput: %v", err)
	}
	if refreshed.Status != store.OutputInProgress {
		t.Fatalf("expected in_progress after reject, got %s", refreshed.Status)
	}
	if refreshed.CompletedAt != nil {
		t.Fatal("expected completed_at cleared")
	}

	gates, err := st.ListGates(ctx, output.ID)
	if err != nil {
		t.Fatalf("ListGates: %v", err)
	}
	for _, gate := range gates {
		switch {
		case gate.Stage == stage.Images:
			if gate.Status != stage.GateRejected {
				t.Fatalf("images: expected rejected, got %s", gate.Status)
			}
		case stage.Index(gate.Stage) > stage.Index(stage.Images):
			if gate.Status != stage.GateNotStarted {
				t.Fatalf("%s: expected not_started after cascade, got %s", gate.Stage, gate.Status)
			}
		default:
			if gate.Status != stage.GateApproved {
				t.Fatalf("%s: expected approved to survive, got %s", gate.Stage, gate.Status)
			}
		}
	}
}

func TestApproveRequiresGenerating(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	output := testsupport.NewOutput(t, st, "stained glass")
	ctx := context.Background()

	err := st.ApproveStage(ctx, output.ID, stage.Outline)
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition for not_started gate, got %v", err)
	}
}

func TestResetOutputReturnsToDraft(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	output := testsupport.NewOutput(t, st, "tidal pools")
	ctx := context.Background()

	if err := st.MarkGenerating(ctx, output.ID, stage.Outline); err != nil {
		t.Fatalf("MarkGenerating: %v", err)
	}
	if err := st.ApproveStage(ctx, output.ID, stage.Outline); err != nil {
		t.Fatalf("ApproveStage: %v", err)
	}
	if err := st.ResetOutput(ctx, output.ID); err != nil {
		t.Fatalf("ResetOutput: %v", err)
	}

	refreshed, err := st.GetOutput(ctx, output.ID)
	if err != nil {
		t.Fatalf("GetOutput: %v", err)
	}
	if refreshed.Status != store.OutputDraft {
		t.Fatalf("expected draft after reset, got %s", refreshed.Status)
	}
	gates, err := st.ListGates(ctx, output.ID)
	if err != nil {
		t.Fatalf("ListGates: %v", err)
	}
	for _, gate := range gates {
		if gate.Status != stage.GateNotStarted {
			t.Fatalf("gate %s: expected not_started after reset, got %s", gate.Stage, gate.Status)
		}
	}
}

func TestRenderArtifactUpsert(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	output := testsupport.NewOutput(t, st, "hot air balloons")
	ctx := context.Background()

	for _, size := range []int64{100, 250} {
		artifact := &store.RenderArtifact{
			OutputID:  output.ID,
			Media:     store.MediaFromPath("/tmp/render.mp4"),
			MediaType: "video/mp4",
			ByteSize:  size,
		}
		if err := st.SaveRenderArtifact(ctx, artifact); err != nil {
			t.Fatalf("SaveRenderArtifact: %v", err)
		}
	}

	artifact, err := st.GetRenderArtifact(ctx, output.ID)
	if err != nil {
		t.Fatalf("GetRenderArtifact: %v", err)
	}
	if artifact.ByteSize != 250 {
		t.Fatalf("expected upserted artifact, got size %d", artifact.ByteSize)
	}
}

func TestCostLedgerTotals(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	output := testsupport.NewOutput(t, st, "beekeeping")
	ctx := context.Background()

	entries := []*store.CostEntry{
		{OutputID: output.ID, Resource: "image", Provider: "pixelforge", Model: "pf-2", Units: 1, AmountUSD: 0.04},
		{OutputID: output.ID, Resource: "image", Provider: "pixelforge", Model: "pf-2", Units: 1, AmountUSD: 0.04},
		{OutputID: output.ID, Resource: "speech", Provider: "voxen", Model: "vx-1", Units: 2, AmountUSD: 0.03},
	}
	for _, entry := range entries {
		if err := st.AddCostEntry(ctx, entry); err != nil {
			t.Fatalf("AddCostEntry: %v", err)
		}
	}

	total, err := st.CostTotal(ctx, output.ID)
	if err != nil {
		t.Fatalf("CostTotal: %v", err)
	}
	if total < 0.109 || total > 0.111 {
		t.Fatalf("expected total near 0.11, got %f", total)
	}

	byResource, err := st.CostTotalsByResource(ctx, output.ID)
	if err != nil {
		t.Fatalf("CostTotalsByResource: %v", err)
	}
	if len(byResource) != 2 {
		t.Fatalf("expected 2 resource buckets, got %d", len(byResource))
	}
	if byResource["image"] < 0.079 || byResource["image"] > 0.081 {
		t.Fatalf("expected image bucket near 0.08, got %f", byResource["image"])
	}
}

func TestStoredMediaBytes(t *testing.T) {
	blob := store.MediaFromBlob([]byte("hello"))
	data, err := blob.Bytes()
	if err != nil {
		t.Fatalf("Bytes from blob: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected blob payload %q", data)
	}

	var empty store.StoredMedia
	if !empty.IsZero() {
		t.Fatal("expected zero media")
	}
	if _, err := empty.Bytes(); err == nil {
		t.Fatal("expected error for empty media")
	}
}
