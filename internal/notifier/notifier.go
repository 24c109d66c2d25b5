// Package notifier implements the incremental new-row Slack notifier: every
// run it scans a data sheet for rows whose numeric id exceeds a watermark
// kept in a small bookkeeping sheet, posts one message per qualifying new
// row, and advances the watermark. It is independent of the attendance
// engine and shares only the tabular store and the Slack channel.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"lmsync/internal/config"
	"lmsync/internal/sheets"
	"lmsync/internal/slack"
)

const (
	watermarkRow = 2
	watermarkCol = 2
)

// Notifier checks a data sheet for new rows since the last run.
type Notifier struct {
	logger *slog.Logger
	store  sheets.Store
	sender slack.Sender
	bot    *slack.BotClient // optional; enables threaded follow-ups
	cfg    *config.Config
}

// New creates a Notifier. bot may be nil, which disables thread follow-ups.
func New(logger *slog.Logger, store sheets.Store, sender slack.Sender, bot *slack.BotClient, cfg *config.Config) *Notifier {
	return &Notifier{logger: logger, store: store, sender: sender, bot: bot, cfg: cfg}
}

// Check performs one incremental pass. Missing configuration and store
// failures are fatal; per-row send failures are logged and skipped so the
// watermark still advances past them.
func (n *Notifier) Check(ctx context.Context) error {
	ncfg := n.cfg.Notifier
	if ncfg.DataSheet == "" {
		return fmt.Errorf("notifier data sheet is not configured")
	}

	if err := n.ensureWatermarkSheet(ctx); err != nil {
		return err
	}
	watermark, err := n.readWatermark(ctx)
	if err != nil {
		return err
	}

	last, err := n.store.LastRow(ctx, ncfg.DataSheet)
	if err != nil {
		return fmt.Errorf("failed to read data sheet: %w", err)
	}
	if last <= 1 {
		n.logger.Info("Data sheet has no rows.")
		return nil
	}

	headers, err := n.store.ReadRange(ctx, ncfg.DataSheet, 1, 1, 1, 0)
	if err != nil {
		return fmt.Errorf("failed to read data sheet header: %w", err)
	}
	if len(headers) == 0 {
		return fmt.Errorf("data sheet %q has no header row", ncfg.DataSheet)
	}
	header := headers[0]

	idCol := findHeader(header, ncfg.IDHeader)
	if idCol < 0 {
		return fmt.Errorf("id column %q not found in data sheet header", ncfg.IDHeader)
	}
	statusCol := findHeader(header, ncfg.StatusHeader)
	situationCol := findHeader(header, ncfg.SituationHeader)

	rows, err := n.store.ReadRange(ctx, ncfg.DataSheet, 2, 1, last-1, len(header))
	if err != nil {
		return fmt.Errorf("failed to read data sheet rows: %w", err)
	}

	maxSeen := watermark
	notified := 0
	for _, row := range rows {
		id, err := strconv.Atoi(strings.TrimSpace(row[idCol]))
		if err != nil {
			continue
		}
		if id > maxSeen {
			maxSeen = id
		}
		if id <= watermark {
			continue
		}
		if statusCol >= 0 && ncfg.StatusValue != "" && strings.TrimSpace(row[statusCol]) != ncfg.StatusValue {
			continue
		}
		if situationCol >= 0 && ncfg.SituationValue != "" && strings.TrimSpace(row[situationCol]) != ncfg.SituationValue {
			continue
		}
		n.notifyRow(ctx, header, row, id)
		notified++
	}

	if maxSeen > watermark {
		if err := n.store.UpdateCell(ctx, ncfg.WatermarkSheet, watermarkRow, watermarkCol, strconv.Itoa(maxSeen)); err != nil {
			return fmt.Errorf("failed to advance watermark: %w", err)
		}
	}
	n.logger.Info("Notifier pass finished.", "notified", notified, "watermark", maxSeen)
	return nil
}

// notifyRow posts the message for one new row and, when a bot client is
// configured, tries to continue an existing channel thread about the record.
func (n *Notifier) notifyRow(ctx context.Context, header, row []string, id int) {
	ncfg := n.cfg.Notifier

	var parts []string
	for _, name := range ncfg.NameHeaders {
		if col := findHeader(header, name); col >= 0 && strings.TrimSpace(row[col]) != "" {
			parts = append(parts, strings.TrimSpace(row[col]))
		}
	}
	key := strconv.Itoa(id)
	text := fmt.Sprintf("新しい申込があります: %s (ID: %s)", strings.Join(parts, " "), key)
	if ncfg.RecordURL != "" {
		text += "\n" + fmt.Sprintf(ncfg.RecordURL, key)
	}

	if !n.sender.Send(ctx, text) {
		n.logger.Warn("Failed to notify row, skipping.", "id", id)
		return
	}

	if n.bot == nil {
		return
	}
	ts, err := n.bot.FindMessageTS(ctx, key, 0)
	if err != nil {
		n.logger.Warn("Thread search failed.", "id", id, "error", err)
		return
	}
	if ts == "" {
		return
	}
	if err := n.bot.PostThreadReply(ctx, ts, text); err != nil {
		n.logger.Warn("Thread reply failed.", "id", id, "error", err)
	}
}

// ensureWatermarkSheet creates the bookkeeping sheet on first run.
func (n *Notifier) ensureWatermarkSheet(ctx context.Context) error {
	name := n.cfg.Notifier.WatermarkSheet
	if _, err := n.store.LastRow(ctx, name); err == nil {
		return nil
	}
	n.logger.Info("Creating watermark sheet.", "name", name)
	if err := n.store.InsertSheet(ctx, name); err != nil {
		return fmt.Errorf("failed to create watermark sheet: %w", err)
	}
	if err := n.store.UpdateCell(ctx, name, 1, 1, "last seen id"); err != nil {
		return fmt.Errorf("failed to initialize watermark sheet: %w", err)
	}
	return nil
}

func (n *Notifier) readWatermark(ctx context.Context) (int, error) {
	value, err := n.store.ReadCell(ctx, n.cfg.Notifier.WatermarkSheet, watermarkRow, watermarkCol)
	if err != nil {
		return 0, fmt.Errorf("failed to read watermark: %w", err)
	}
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	watermark, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		n.logger.Warn("Watermark cell is not a number, treating as first run.", "value", value)
		return 0, nil
	}
	return watermark, nil
}

// findHeader returns the 0-based index of a header name, matched after
// trimming and case-folding, or -1.
func findHeader(header []string, name string) int {
	if name == "" {
		return -1
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}
