// Package archive keeps a JSON copy of every order submission in S3.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

const snapshotVersion = "1.0"

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives order snapshots to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger.WithComponent("archive")}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// SnapshotKey returns the object key for a snapshot.
func SnapshotKey(snap OrderSnapshot) string {
	at := snap.SubmittedAt.UTC()
	return fmt.Sprintf("orders/v1/by-date/%d/%02d/%02d/%s.json", at.Year(), at.Month(), at.Day(), snap.RefOrderID)
}

// ArchiveOrder writes snap as JSON and appends it to the monthly manifest.
func (s *Store) ArchiveOrder(ctx context.Context, snap OrderSnapshot) error {
	if !s.Enabled() {
		return nil
	}
	if strings.TrimSpace(snap.RefOrderID) == "" {
		return errors.New("archive: ref_order_id required")
	}
	if snap.SubmittedAt.IsZero() {
		snap.SubmittedAt = time.Now().UTC()
	}
	if snap.Version == "" {
		snap.Version = snapshotVersion
	}
	snap.Payload = ScrubPayload(snap.Payload)

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("archive: marshal snapshot: %w", err)
	}

	key := SnapshotKey(snap)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	s.logger.Info("archived order snapshot", "ref_order_id", snap.RefOrderID, "outcome", snap.Outcome, "s3_key", key)

	entry := ManifestEntry{
		RefOrderID:  snap.RefOrderID,
		OrderNo:     snap.OrderNo,
		S3Key:       key,
		Outcome:     snap.Outcome,
		PackageCode: snap.PackageCode,
		ArchivedAt:  snap.SubmittedAt.UTC().Format(time.RFC3339),
	}
	if err := s.AppendManifest(ctx, entry, snap.SubmittedAt); err != nil {
		s.logger.Warn("failed to append manifest", "error", err, "ref_order_id", snap.RefOrderID)
	}
	return nil
}

// AppendManifest appends a JSONL line to the monthly manifest file for at.
// S3 has no append, so this is a read-modify-write.
func (s *Store) AppendManifest(ctx context.Context, entry ManifestEntry, at time.Time) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	at = at.UTC()
	manifestKey := fmt.Sprintf("orders/v1/manifests/%d-%02d.jsonl", at.Year(), at.Month())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(getResp.Body)
		getResp.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("archive: get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "StatusCode: 404")
}
