package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

const gateColumns = `output_id, stage, status, feedback, executed_at, reviewed_at`

// Gate fetches one (output, stage) approval record.
func (s *Store) Gate(ctx context.Context, outputID string, st stage.Stage) (*StageGate, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+gateColumns+" FROM stage_gates WHERE output_id = ? AND stage = ?",
		outputID, string(st))
	gate, err := scanGate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, string(st), "get gate",
			fmt.Sprintf("output %s", outputID), nil)
	}
	return gate, err
}

// ListGates returns an output's gates in pipeline order.
func (s *Store) ListGates(ctx context.Context, outputID string) ([]*StageGate, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+gateColumns+" FROM stage_gates WHERE output_id = ?", outputID)
	if err != nil {
		return nil, fmt.Errorf("list gates: %w", err)
	}
	defer rows.Close()

	byStage := make(map[stage.Stage]*StageGate, len(stage.Sequence()))
	for rows.Next() {
		gate, err := scanGate(rows)
		if err != nil {
			return nil, err
		}
		byStage[gate.Stage] = gate
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list gates: %w", err)
	}
	if len(byStage) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "", "list gates",
			fmt.Sprintf("output %s", outputID), nil)
	}

	ordered := make([]*StageGate, 0, len(byStage))
	for _, st := range stage.Sequence() {
		if gate, ok := byStage[st]; ok {
			ordered = append(ordered, gate)
		}
	}
	return ordered, nil
}

// MarkGenerating transitions a gate into the generating state, recording
// when execution started. The output itself moves to in_progress on the
// first stage execution.
func (s *Store) MarkGenerating(ctx context.Context, outputID string, st stage.Stage) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := setGate(ctx, tx, outputID, st, stage.GateGenerating, "", &now, nil); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE outputs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(OutputInProgress), timestamp(now), outputID, string(OutputDraft),
		); err != nil {
			return fmt.Errorf("mark output in progress: %w", err)
		}
		return nil
	})
}

// ApproveStage approves a gate. Approving the final stage completes the
// output in the same transaction.
func (s *Store) ApproveStage(ctx context.Context, outputID string, st stage.Stage) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := gateStatus(ctx, tx, outputID, st)
		if err != nil {
			return err
		}
		if current != stage.GateGenerating && current != stage.GateRejected {
			return services.Wrap(services.ErrPrecondition, string(st), "approve",
				fmt.Sprintf("gate is %s, expected generating", current), nil)
		}
		if err := setGate(ctx, tx, outputID, st, stage.GateApproved, "", nil, &now); err != nil {
			return err
		}
		if stage.Final(st) {
			if _, err := tx.ExecContext(ctx, `
				UPDATE outputs SET status = ?, correction_mode = 0, completed_at = ?, updated_at = ? WHERE id = ?`,
				string(OutputCompleted), timestamp(now), timestamp(now), outputID,
			); err != nil {
				return fmt.Errorf("complete output: %w", err)
			}
		}
		return nil
	})
}

// RejectStage rejects a gate with reviewer feedback and resets every later
// gate to not_started in the same transaction, so downstream work generated
// from the rejected artifact can never be approved against it. Rejecting a
// stage on a completed output demotes the output back to in_progress.
func (s *Store) RejectStage(ctx context.Context, outputID string, st stage.Stage, feedback string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := gateStatus(ctx, tx, outputID, st)
		if err != nil {
			return err
		}
		if current != stage.GateGenerating && current != stage.GateApproved {
			return services.Wrap(services.ErrPrecondition, string(st), "reject",
				fmt.Sprintf("gate is %s, nothing to reject", current), nil)
		}
		if err := setGate(ctx, tx, outputID, st, stage.GateRejected, feedback, nil, &now); err != nil {
			return err
		}
		if err := resetGates(ctx, tx, outputID, stage.After(st)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE outputs SET status = ?, completed_at = NULL, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(OutputInProgress), timestamp(now), outputID, string(OutputCompleted),
		); err != nil {
			return fmt.Errorf("reopen output: %w", err)
		}
		return nil
	})
}

// ResetGatesFrom returns a stage and everything after it to not_started.
// Correction mode and scene redos use this to reopen an approved pipeline
// without discarding earlier approvals.
func (s *Store) ResetGatesFrom(ctx context.Context, outputID string, st stage.Stage) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	stages := append([]stage.Stage{st}, stage.After(st)...)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := resetGates(ctx, tx, outputID, stages); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE outputs SET status = ?, completed_at = NULL, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(OutputInProgress), timestamp(now), outputID, string(OutputCompleted),
		); err != nil {
			return fmt.Errorf("reopen output: %w", err)
		}
		return nil
	})
}

// ResetGates returns only the named gates to not_started, leaving the rest
// untouched. Correction mode uses this to reopen the visual stages while the
// approved audio gates stay closed.
func (s *Store) ResetGates(ctx context.Context, outputID string, stages ...stage.Stage) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := resetGates(ctx, tx, outputID, stages); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE outputs SET status = ?, completed_at = NULL, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(OutputInProgress), timestamp(now), outputID, string(OutputCompleted),
		); err != nil {
			return fmt.Errorf("reopen output: %w", err)
		}
		return nil
	})
}

// SetCorrectionMode flips the output's correction flag.
func (s *Store) SetCorrectionMode(ctx context.Context, outputID string, enabled bool) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx, `
		UPDATE outputs SET correction_mode = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), timestamp(time.Now().UTC()), outputID)
	if err != nil {
		return fmt.Errorf("set correction mode: %w", err)
	}
	return requireRow(res, "set correction mode", outputID)
}

// ResetOutput returns an output to its freshly created state: every gate
// not_started, status draft, error cleared. Generated scenes, assets, and
// tracks are left in place for reference until the stages run again.
func (s *Store) ResetOutput(ctx context.Context, outputID string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := resetGates(ctx, tx, outputID, stage.Sequence()); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE outputs SET status = ?, correction_mode = 0, error_message = NULL,
				completed_at = NULL, updated_at = ?
			WHERE id = ?`,
			string(OutputDraft), timestamp(now), outputID,
		)
		if err != nil {
			return fmt.Errorf("reset output: %w", err)
		}
		return requireRow(res, "reset output", outputID)
	})
}

func setGate(ctx context.Context, tx *sql.Tx, outputID string, st stage.Stage, status stage.GateStatus, feedback string, executedAt, reviewedAt *time.Time) error {
	assignments := []string{"status = ?"}
	args := []any{string(status)}
	if status == stage.GateRejected {
		assignments = append(assignments, "feedback = ?")
		args = append(args, nullableString(feedback))
	} else if status == stage.GateNotStarted || status == stage.GateGenerating {
		assignments = append(assignments, "feedback = NULL")
	}
	if executedAt != nil {
		assignments = append(assignments, "executed_at = ?")
		args = append(args, timestamp(*executedAt))
	}
	if reviewedAt != nil {
		assignments = append(assignments, "reviewed_at = ?")
		args = append(args, timestamp(*reviewedAt))
	}
	args = append(args, outputID, string(st))

	res, err := tx.ExecContext(ctx,
		"UPDATE stage_gates SET "+strings.Join(assignments, ", ")+" WHERE output_id = ? AND stage = ?",
		args...)
	if err != nil {
		return fmt.Errorf("set gate %s: %w", st, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set gate %s: %w", st, err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, string(st), "set gate",
			fmt.Sprintf("output %s", outputID), nil)
	}
	return nil
}

func resetGates(ctx context.Context, tx *sql.Tx, outputID string, stages []stage.Stage) error {
	for _, st := range stages {
		if _, err := tx.ExecContext(ctx, `
			UPDATE stage_gates SET status = ?, feedback = NULL, executed_at = NULL, reviewed_at = NULL
			WHERE output_id = ? AND stage = ?`,
			string(stage.GateNotStarted), outputID, string(st),
		); err != nil {
			return fmt.Errorf("reset gate %s: %w", st, err)
		}
	}
	return nil
}

func gateStatus(ctx context.Context, tx *sql.Tx, outputID string, st stage.Stage) (stage.GateStatus, error) {
	var status string
	row := tx.QueryRowContext(ctx,
		"SELECT status FROM stage_gates WHERE output_id = ? AND stage = ?",
		outputID, string(st))
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", services.Wrap(services.ErrNotFound, string(st), "get gate",
				fmt.Sprintf("output %s", outputID), nil)
		}
		return "", fmt.Errorf("get gate status: %w", err)
	}
	parsed, ok := stage.ParseGateStatus(status)
	if !ok {
		return "", fmt.Errorf("get gate status: unknown status %q", status)
	}
	return parsed, nil
}

func scanGate(row rowScanner) (*StageGate, error) {
	var (
		gate       StageGate
		stageName  string
		status     string
		feedback   sql.NullString
		executedAt sql.NullString
		reviewedAt sql.NullString
	)
	if err := row.Scan(&gate.OutputID, &stageName, &status, &feedback, &executedAt, &reviewedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan gate: %w", err)
	}
	parsedStage, ok := stage.Parse(stageName)
	if !ok {
		return nil, fmt.Errorf("scan gate: unknown stage %q", stageName)
	}
	parsedStatus, ok := stage.ParseGateStatus(status)
	if !ok {
		return nil, fmt.Errorf("scan gate: unknown status %q", status)
	}
	gate.Stage = parsedStage
	gate.Status = parsedStatus
	gate.Feedback = feedback.String
	gate.ExecutedAt = parseTimePtr(executedAt)
	gate.ReviewedAt = parseTimePtr(reviewedAt)
	return &gate, nil
}
