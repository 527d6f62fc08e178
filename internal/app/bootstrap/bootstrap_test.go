package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"

	appconfig "github.com/wolfman30/diagnostic-booking/internal/config"
	"github.com/wolfman30/diagnostic-booking/internal/notify"
	"github.com/wolfman30/diagnostic-booking/internal/sheets"
	"github.com/wolfman30/diagnostic-booking/internal/tasks"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Default(), true); client != nil {
		t.Fatalf("expected nil client without an address")
	}
}

func TestBuildRedisClientVerifiesConnection(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Default(), true)
	if client == nil {
		t.Fatalf("expected client for a reachable redis")
	}
	defer client.Close()

	addr := mr.Addr()
	mr.Close()
	if got := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logging.Default(), true); got != nil {
		t.Fatalf("expected nil client once redis is gone")
	}
}

func TestConnectPostgresPoolSkipsEmptyURL(t *testing.T) {
	if pool := ConnectPostgresPool(context.Background(), "  ", nil); pool != nil {
		t.Fatalf("expected nil pool")
	}
	db, err := OpenSQL("")
	if err != nil || db != nil {
		t.Fatalf("expected no handle, got %v %v", db, err)
	}
}

func TestBuildSheetsLoggerSelection(t *testing.T) {
	logger := logging.Default()

	if _, ok := BuildSheetsLogger(context.Background(), &appconfig.Config{}, logger).(*sheets.NoopLogger); !ok {
		t.Fatalf("expected noop logger without configuration")
	}
	cfg := &appconfig.Config{SheetsWebhookURL: "https://script.example/exec"}
	if _, ok := BuildSheetsLogger(context.Background(), cfg, logger).(*sheets.WebhookLogger); !ok {
		t.Fatalf("expected webhook logger")
	}
}

func TestBuildEmailSenderFallsBack(t *testing.T) {
	logger := logging.Default()

	sender, provider := BuildEmailSender(&appconfig.Config{EmailProvider: "auto"}, nil, logger)
	if provider != "stub" {
		t.Fatalf("provider = %q", provider)
	}
	if _, ok := sender.(*notify.StubEmailSender); !ok {
		t.Fatalf("expected stub sender, got %T", sender)
	}

	cfg := &appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "SG.test", EmailFrom: "ops@example.com"}
	if _, provider := BuildEmailSender(cfg, nil, logger); provider != "sendgrid" {
		t.Fatalf("provider = %q", provider)
	}

	cfg = &appconfig.Config{EmailProvider: "ses", EmailFrom: "ops@example.com"}
	if _, provider := BuildEmailSender(cfg, &aws.Config{Region: "ap-south-1"}, logger); provider != "ses" {
		t.Fatalf("provider = %q", provider)
	}
}

func TestBuildTaskQueueDefaultsToMemory(t *testing.T) {
	queue, mem := BuildTaskQueue(&appconfig.Config{TaskQueueURL: "https://sqs.example/q"}, nil)
	if mem == nil || queue != tasks.Queue(mem) {
		t.Fatalf("expected the memory queue without aws config")
	}

	queue, mem = BuildTaskQueue(&appconfig.Config{TaskQueueURL: "https://sqs.example/q"}, &aws.Config{Region: "ap-south-1"})
	if mem != nil {
		t.Fatalf("expected no memory queue")
	}
	if _, ok := queue.(*tasks.SQSQueue); !ok {
		t.Fatalf("expected sqs queue, got %T", queue)
	}
}

func TestBuildDeadLetterStoreAndArchive(t *testing.T) {
	logger := logging.Default()
	if _, ok := BuildDeadLetterStore(&appconfig.Config{}, nil, logger).(*tasks.MemoryDeadLetterStore); !ok {
		t.Fatalf("expected memory dead letter store")
	}
	awsCfg := &aws.Config{Region: "ap-south-1"}
	if _, ok := BuildDeadLetterStore(&appconfig.Config{DeadLetterTable: "dl"}, awsCfg, logger).(*tasks.DynamoDeadLetterStore); !ok {
		t.Fatalf("expected dynamo dead letter store")
	}

	if BuildArchiveStore(&appconfig.Config{}, awsCfg, logger).Enabled() {
		t.Fatalf("archive must be disabled without a bucket")
	}
	if !BuildArchiveStore(&appconfig.Config{ArchiveBucket: "orders"}, awsCfg, logger).Enabled() {
		t.Fatalf("archive should be enabled with a bucket")
	}
}

func TestBuildRunnerWiresSideEffects(t *testing.T) {
	cfg := &appconfig.Config{TaskWorkerCount: 1, TaskMaxAttempts: 2}
	queue := tasks.NewMemoryQueue(4)
	fx := BuildSideEffects(context.Background(), cfg, nil, nil)
	runner := BuildRunner(cfg, queue, tasks.NewMemoryDeadLetterStore(), fx, nil, nil)
	if runner == nil {
		t.Fatalf("expected runner")
	}
	if _, ok := fx.Sheets.(*sheets.NoopLogger); !ok {
		t.Fatalf("expected noop sheets logger, got %T", fx.Sheets)
	}
}
