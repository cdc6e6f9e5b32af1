package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

const outputColumns = `id, title, brief, aspect_ratio, target_seconds, voice, words_per_minute,
	style_lighting, style_atmosphere, style_composition, style_base,
	status, correction_mode, error_message, outline_text, draft_text, edit_plan_json,
	completed_at, created_at, updated_at`

// CreateOutput inserts a new output together with its full set of stage
// gates, all in the not_started state. A missing ID is generated.
func (s *Store) CreateOutput(ctx context.Context, output *Output) error {
	ctx = ensureContext(ctx)
	if output == nil {
		return errors.New("create output: nil output")
	}
	if output.ID == "" {
		output.ID = uuid.NewString()
	}
	if output.Status == "" {
		output.Status = OutputDraft
	}
	now := time.Now().UTC()
	output.CreatedAt = now
	output.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outputs (
				id, title, brief, aspect_ratio, target_seconds, voice, words_per_minute,
				style_lighting, style_atmosphere, style_composition, style_base,
				status, correction_mode, error_message, outline_text, draft_text, edit_plan_json,
				completed_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			output.ID, output.Title, output.Brief, output.AspectRatio,
			output.TargetSeconds, output.Voice, output.WordsPerMinute,
			output.Style.Lighting, output.Style.Atmosphere, output.Style.Composition, output.Style.Base,
			string(output.Status), boolToInt(output.CorrectionMode), nullableString(output.ErrorMessage),
			nullableString(output.OutlineText), nullableString(output.DraftText),
			nullableString(output.EditPlanJSON),
			nullableTime(output.CompletedAt), timestamp(output.CreatedAt), timestamp(output.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert output: %w", err)
		}
		for _, st := range stage.Sequence() {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO stage_gates (output_id, stage, status) VALUES (?, ?, ?)`,
				output.ID, string(st), string(stage.GateNotStarted),
			); err != nil {
				return fmt.Errorf("insert gate %s: %w", st, err)
			}
		}
		return nil
	})
}

// GetOutput fetches one output by its full ID.
func (s *Store) GetOutput(ctx context.Context, id string) (*Output, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+outputColumns+" FROM outputs WHERE id = ?", id)
	output, err := scanOutput(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "", "get output", fmt.Sprintf("output %s", id), nil)
	}
	return output, err
}

// ResolveOutputID expands a short ID prefix to a full output ID. Ambiguous
// prefixes are rejected rather than guessed at.
func (s *Store) ResolveOutputID(ctx context.Context, prefix string) (string, error) {
	ctx = ensureContext(ctx)
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", services.Wrap(services.ErrValidation, "", "resolve output", "empty output id", nil)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM outputs WHERE id LIKE ? ORDER BY id LIMIT 2", prefix+"%")
	if err != nil {
		return "", fmt.Errorf("resolve output id: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("resolve output id: %w", err)
		}
		matches = append(matches, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve output id: %w", err)
	}
	switch len(matches) {
	case 0:
		return "", services.Wrap(services.ErrNotFound, "", "resolve output", fmt.Sprintf("no output matches %q", prefix), nil)
	case 1:
		return matches[0], nil
	default:
		return "", services.Wrap(services.ErrValidation, "", "resolve output", fmt.Sprintf("prefix %q is ambiguous", prefix), nil)
	}
}

// ListOutputs returns outputs newest first, optionally filtered by status.
func (s *Store) ListOutputs(ctx context.Context, statuses ...OutputStatus) ([]*Output, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + outputColumns + " FROM outputs"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	defer rows.Close()

	var outputs []*Output
	for rows.Next() {
		output, err := scanOutput(rows)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, output)
	}
	return outputs, rows.Err()
}

// UpdateOutput persists the mutable fields of an output.
func (s *Store) UpdateOutput(ctx context.Context, output *Output) error {
	ctx = ensureContext(ctx)
	if output == nil {
		return errors.New("update output: nil output")
	}
	output.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx, `
		UPDATE outputs SET
			title = ?, brief = ?, aspect_ratio = ?, target_seconds = ?, voice = ?,
			words_per_minute = ?, style_lighting = ?, style_atmosphere = ?,
			style_composition = ?, style_base = ?, status = ?, correction_mode = ?,
			error_message = ?,
			outline_text = ?, draft_text = ?, edit_plan_json = ?, completed_at = ?,
			updated_at = ?
		WHERE id = ?`,
		output.Title, output.Brief, output.AspectRatio, output.TargetSeconds, output.Voice,
		output.WordsPerMinute, output.Style.Lighting, output.Style.Atmosphere,
		output.Style.Composition, output.Style.Base, string(output.Status),
		boolToInt(output.CorrectionMode),
		nullableString(output.ErrorMessage), nullableString(output.OutlineText),
		nullableString(output.DraftText), nullableString(output.EditPlanJSON),
		nullableTime(output.CompletedAt), timestamp(output.UpdatedAt), output.ID,
	)
	if err != nil {
		return fmt.Errorf("update output: %w", err)
	}
	return requireRow(res, "update output", output.ID)
}

// SetOutputStatus transitions an output's lifecycle status, recording an
// error message when the transition is into the failed state.
func (s *Store) SetOutputStatus(ctx context.Context, id string, status OutputStatus, errorMessage string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	var completedAt any
	if status == OutputCompleted {
		completedAt = timestamp(now)
	}
	res, err := s.execWithRetry(ctx, `
		UPDATE outputs SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`,
		string(status), nullableString(errorMessage), completedAt, timestamp(now), id,
	)
	if err != nil {
		return fmt.Errorf("set output status: %w", err)
	}
	return requireRow(res, "set output status", id)
}

// DeleteOutput removes an output and, through foreign keys, everything that
// hangs off it.
func (s *Store) DeleteOutput(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx, "DELETE FROM outputs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete output: %w", err)
	}
	return requireRow(res, "delete output", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutput(row rowScanner) (*Output, error) {
	var (
		output       Output
		status       string
		correction   int
		errorMessage sql.NullString
		outlineText  sql.NullString
		draftText    sql.NullString
		editPlanJSON sql.NullString
		completedAt  sql.NullString
		createdAt    string
		updatedAt    string
	)
	if err := row.Scan(
		&output.ID, &output.Title, &output.Brief, &output.AspectRatio,
		&output.TargetSeconds, &output.Voice, &output.WordsPerMinute,
		&output.Style.Lighting, &output.Style.Atmosphere, &output.Style.Composition, &output.Style.Base,
		&status, &correction, &errorMessage, &outlineText, &draftText, &editPlanJSON,
		&completedAt, &createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan output: %w", err)
	}
	parsed, ok := ParseOutputStatus(status)
	if !ok {
		return nil, fmt.Errorf("scan output: unknown status %q", status)
	}
	output.Status = parsed
	output.CorrectionMode = correction != 0
	output.ErrorMessage = errorMessage.String
	output.OutlineText = outlineText.String
	output.DraftText = draftText.String
	output.EditPlanJSON = editPlanJSON.String
	output.CompletedAt = parseTimePtr(completedAt)

	var err error
	if output.CreatedAt, err = parseTimeString(createdAt); err != nil {
		return nil, fmt.Errorf("scan output: created_at: %w", err)
	}
	if output.UpdatedAt, err = parseTimeString(updatedAt); err != nil {
		return nil, fmt.Errorf("scan output: updated_at: %w", err)
	}
	return &output, nil
}

func requireRow(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", operation, err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "", operation, fmt.Sprintf("output %s", id), nil)
	}
	return nil
}
