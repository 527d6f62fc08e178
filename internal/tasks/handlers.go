package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wolfman30/diagnostic-booking/internal/archive"
	"github.com/wolfman30/diagnostic-booking/internal/notify"
	"github.com/wolfman30/diagnostic-booking/internal/sheets"
)

type failureNotifier interface {
	NotifyOrderFailure(ctx context.Context, report notify.FailureReport) error
}

type orderArchiver interface {
	ArchiveOrder(ctx context.Context, snap archive.OrderSnapshot) error
}

// SheetAppendHandler appends a sheets.Row payload.
func SheetAppendHandler(logger sheets.Logger) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		if logger == nil {
			return errors.New("tasks: sheet logger not configured")
		}
		var row sheets.Row
		if err := json.Unmarshal(payload, &row); err != nil {
			return fmt.Errorf("tasks: decode sheet row: %w", err)
		}
		return logger.Append(ctx, row)
	}
}

// OrderFailureEmailHandler sends a notify.FailureReport payload.
func OrderFailureEmailHandler(n failureNotifier) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		if n == nil {
			return errors.New("tasks: failure notifier not configured")
		}
		var report notify.FailureReport
		if err := json.Unmarshal(payload, &report); err != nil {
			return fmt.Errorf("tasks: decode failure report: %w", err)
		}
		return n.NotifyOrderFailure(ctx, report)
	}
}

// ArchiveOrderHandler writes an archive.OrderSnapshot payload.
func ArchiveOrderHandler(a orderArchiver) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		if a == nil {
			return errors.New("tasks: archive store not configured")
		}
		var snap archive.OrderSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return fmt.Errorf("tasks: decode order snapshot: %w", err)
		}
		return a.ArchiveOrder(ctx, snap)
	}
}
