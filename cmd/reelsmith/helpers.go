package main

import (
	"context"
	"fmt"
	"time"

	"reelsmith/internal/stage"
	"reelsmith/internal/store"
)

// resolveOutput accepts a full or prefix output id.
func resolveOutput(ctx context.Context, st *store.Store, ref string) (*store.Output, error) {
	id, err := st.ResolveOutputID(ctx, ref)
	if err != nil {
		return nil, err
	}
	return st.GetOutput(ctx, id)
}

func parseStageArg(value string) (stage.Stage, error) {
	parsed, ok := stage.Parse(value)
	if !ok {
		return "", fmt.Errorf("unknown stage %q (one of: %s)", value, stageNames())
	}
	return parsed, nil
}

func stageNames() string {
	names := ""
	for i, st := range stage.Sequence() {
		if i > 0 {
			names += ", "
		}
		names += string(st)
	}
	return names
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTime(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04")
}

func formatMS(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).Truncate(100 * time.Millisecond).String()
}

func gateStatusLabel(status stage.GateStatus, colorize bool) string {
	label := string(status)
	if !colorize {
		return label
	}
	switch status {
	case stage.GateApproved:
		return ansiGreen + label + ansiReset
	case stage.GateGenerating:
		return ansiYellow + label + ansiReset
	case stage.GateRejected:
		return ansiRed + label + ansiReset
	default:
		return ansiDim + label + ansiReset
	}
}
