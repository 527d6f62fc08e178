package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"google.golang.org/api/option"

	"github.com/wolfman30/diagnostic-booking/internal/archive"
	appconfig "github.com/wolfman30/diagnostic-booking/internal/config"
	"github.com/wolfman30/diagnostic-booking/internal/notify"
	"github.com/wolfman30/diagnostic-booking/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking/internal/sheets"
	"github.com/wolfman30/diagnostic-booking/internal/tasks"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

// BuildSheetsLogger prefers the Sheets API when a spreadsheet id is set, then
// the Apps Script webhook, then a logger that only records the row.
func BuildSheetsLogger(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) sheets.Logger {
	if logger == nil {
		logger = logging.Default()
	}
	if id := strings.TrimSpace(cfg.GoogleSheetsSpreadsheetID); id != "" {
		var opts []option.ClientOption
		if file := strings.TrimSpace(cfg.GoogleSheetsCredentialsFile); file != "" {
			opts = append(opts, option.WithCredentialsFile(file))
		}
		api, err := sheets.NewSheetsAPILogger(ctx, id, logger, opts...)
		if err == nil {
			logger.Info("sheet rows go to the Sheets API", "spreadsheet_id", id)
			return api
		}
		logger.Warn("sheets api unavailable", "error", err)
	}
	if url := strings.TrimSpace(cfg.SheetsWebhookURL); url != "" {
		return sheets.NewWebhookLogger(url, logger)
	}
	logger.Warn("no spreadsheet configured; sheet rows are only logged")
	return sheets.NewNoopLogger(logger)
}

// BuildEmailSender picks SES, SendGrid or the stub per EMAIL_PROVIDER. "auto"
// takes SES when a sender address is set and AWS is reachable, else SendGrid
// when keyed.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	provider := strings.ToLower(strings.TrimSpace(cfg.EmailProvider))
	from := strings.TrimSpace(cfg.EmailFrom)

	useSES := func() notify.EmailSender {
		if awsCfg == nil || from == "" {
			return nil
		}
		if s := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{FromEmail: from, FromName: cfg.EmailFromName}, logger); s != nil {
			return s
		}
		return nil
	}
	useSendGrid := func() notify.EmailSender {
		if s := notify.NewSendGridSender(notify.SendGridConfig{APIKey: cfg.SendGridAPIKey, FromEmail: from, FromName: cfg.EmailFromName}, logger); s != nil {
			return s
		}
		return nil
	}

	switch provider {
	case "ses":
		if s := useSES(); s != nil {
			return s, "ses"
		}
	case "sendgrid":
		if s := useSendGrid(); s != nil {
			return s, "sendgrid"
		}
	case "", "auto":
		if s := useSES(); s != nil {
			return s, "ses"
		}
		if s := useSendGrid(); s != nil {
			return s, "sendgrid"
		}
	}
	return notify.NewStubEmailSender(logger), "stub"
}

// BuildTaskQueue returns the side-effect queue. The memory queue is returned
// separately so the API can run its runner inline.
func BuildTaskQueue(cfg *appconfig.Config, awsCfg *aws.Config) (tasks.Queue, *tasks.MemoryQueue) {
	if cfg.UseMemoryQueue || awsCfg == nil || strings.TrimSpace(cfg.TaskQueueURL) == "" {
		mq := tasks.NewMemoryQueue(256)
		return mq, mq
	}
	return tasks.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.TaskQueueURL), nil
}

// BuildDeadLetterStore uses DynamoDB when a table is configured.
func BuildDeadLetterStore(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) tasks.DeadLetterStore {
	if awsCfg == nil || strings.TrimSpace(cfg.DeadLetterTable) == "" {
		return tasks.NewMemoryDeadLetterStore()
	}
	return tasks.NewDynamoDeadLetterStore(dynamodb.NewFromConfig(*awsCfg), cfg.DeadLetterTable, logger)
}

// BuildArchiveStore returns a store that no-ops without a bucket.
func BuildArchiveStore(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *archive.Store {
	if awsCfg == nil || strings.TrimSpace(cfg.ArchiveBucket) == "" {
		return archive.NewStore(nil, "", logger)
	}
	client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
	return archive.NewStore(client, cfg.ArchiveBucket, logger)
}

// SideEffects bundles what the task runner dispatches to.
type SideEffects struct {
	Sheets   sheets.Logger
	Notifier *notify.FailureNotifier
	Archive  *archive.Store
}

// BuildSideEffects wires the sheet logger, failure notifier and archive.
func BuildSideEffects(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) SideEffects {
	if logger == nil {
		logger = logging.Default()
	}
	sender, provider := BuildEmailSender(cfg, awsCfg, logger)
	logger.Info("error email sender selected", "provider", provider)
	return SideEffects{
		Sheets:   BuildSheetsLogger(ctx, cfg, logger),
		Notifier: notify.NewFailureNotifier(sender, cfg.ErrorEmailTo, logger),
		Archive:  BuildArchiveStore(cfg, awsCfg, logger),
	}
}

// BuildRunner registers a handler per task kind.
func BuildRunner(cfg *appconfig.Config, queue tasks.Queue, deadLetters tasks.DeadLetterStore, fx SideEffects, logger *logging.Logger, m *metrics.BookingMetrics) *tasks.Runner {
	return tasks.NewRunner(queue, deadLetters, logger, m).
		WithWorkers(cfg.TaskWorkerCount).
		WithMaxAttempts(cfg.TaskMaxAttempts).
		WithBaseDelay(cfg.TaskRetryBaseDelay).
		Handle(tasks.KindSheetAppend, tasks.SheetAppendHandler(fx.Sheets)).
		Handle(tasks.KindOrderFailureEmail, tasks.OrderFailureEmailHandler(fx.Notifier)).
		Handle(tasks.KindArchiveOrder, tasks.ArchiveOrderHandler(fx.Archive))
}
