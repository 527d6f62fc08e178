package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

const defaultTimeout = 15 * time.Second

// Logger appends rows to the booking spreadsheet.
type Logger interface {
	Append(ctx context.Context, row Row) error
}

// WebhookLogger posts rows to an Apps Script web app that owns the spreadsheet.
type WebhookLogger struct {
	url        string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewWebhookLogger returns nil when url is empty.
func NewWebhookLogger(url string, logger *logging.Logger) *WebhookLogger {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookLogger{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.WithComponent("sheets"),
	}
}

func (w *WebhookLogger) Append(ctx context.Context, row Row) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("sheets: marshal row: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sheets: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sheets: post row: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return fmt.Errorf("sheets: webhook returned %d: %s", resp.StatusCode, msg)
	}
	w.logger.Debug("sheet row appended", "sheet", row.Sheet)
	return nil
}

// SheetsAPILogger appends rows directly with the Google Sheets API.
type SheetsAPILogger struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *logging.Logger
}

// NewSheetsAPILogger builds a Sheets API client. opts typically carry
// option.WithCredentialsFile.
func NewSheetsAPILogger(ctx context.Context, spreadsheetID string, logger *logging.Logger, opts ...option.ClientOption) (*SheetsAPILogger, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("sheets: spreadsheet id required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	return &SheetsAPILogger{service: svc, spreadsheetID: spreadsheetID, logger: logger.WithComponent("sheets")}, nil
}

func (s *SheetsAPILogger) Append(ctx context.Context, row Row) error {
	if _, ok := columns[row.Sheet]; !ok {
		return fmt.Errorf("sheets: unknown sheet %q", row.Sheet)
	}
	vr := &sheetsapi.ValueRange{Values: [][]interface{}{row.Values()}}
	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, string(row.Sheet)+"!A1", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: append %s: %w", row.Sheet, err)
	}
	s.logger.Debug("sheet row appended", "sheet", row.Sheet)
	return nil
}

// NoopLogger drops rows when no spreadsheet is configured.
type NoopLogger struct {
	logger *logging.Logger
}

func NewNoopLogger(logger *logging.Logger) *NoopLogger {
	if logger == nil {
		logger = logging.Default()
	}
	return &NoopLogger{logger: logger.WithComponent("sheets")}
}

func (n *NoopLogger) Append(_ context.Context, row Row) error {
	n.logger.Warn("sheet row dropped, spreadsheet logging not configured", "sheet", row.Sheet)
	return nil
}
