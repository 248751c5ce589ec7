package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	appconfig "tradelink/config"
	"tradelink/logger"
	"tradelink/models"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Trail keeps an append-only JSON-array file of every submitted order. The
// file and its parent directory are created on first write. When the S3
// mirror is enabled the full array is uploaded after each append; mirror
// failures are logged but never fail the local record.
type Trail struct {
	config *appconfig.Config
	log    *logger.Log
	path   string
	mu     sync.Mutex

	s3Client *s3.Client
	bucket   string
	key      string
}

// NewTrail creates the audit trail, initializing the S3 mirror client when
// storage.s3 is enabled.
func NewTrail(cfg *appconfig.Config) (*Trail, error) {
	t := &Trail{
		config: cfg,
		log:    logger.GetLogger(),
		path:   cfg.Audit.Path,
	}

	if cfg.Storage.S3.Enabled {
		loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Storage.S3.Region)}
		if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					cfg.Storage.S3.AccessKeyID,
					cfg.Storage.S3.SecretAccessKey,
					"",
				),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		t.s3Client = s3.NewFromConfig(awsCfg)
		t.bucket = cfg.Storage.S3.Bucket
		t.key = mirrorKey(cfg.Storage.S3.Prefix, cfg.Audit.Path)
		t.log.WithComponent("audit").WithFields(logger.Fields{
			"bucket": t.bucket,
			"key":    t.key,
		}).Debug("audit s3 mirror initialized")
	}

	return t, nil
}

// Record appends one order report to the audit file.
func (t *Trail) Record(report models.OrderReport) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	log := t.log.WithComponent("audit").WithFields(logger.Fields{
		"order_id": report.OrderID,
		"symbol":   report.Symbol,
	})

	reports, err := t.readAll()
	if err != nil {
		return err
	}
	reports = append(reports, report)

	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit records: %w", err)
	}
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audit directory: %w", err)
		}
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	log.WithField("records", len(reports)).Info("order recorded to audit trail")

	if t.s3Client != nil {
		t.mirror(data, log)
	}
	return nil
}

// Records returns the full audit history, or an empty slice when no order was
// recorded yet.
func (t *Trail) Records() ([]models.OrderReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readAll()
}

func (t *Trail) readAll() ([]models.OrderReport, error) {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return []models.OrderReport{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit file: %w", err)
	}
	var reports []models.OrderReport
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, fmt.Errorf("decode audit file: %w", err)
	}
	return reports, nil
}

func (t *Trail) mirror(data []byte, log *logger.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	contentType := "application/json"
	_, err := t.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &t.bucket,
		Key:         &t.key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		log.WithError(err).Warn("failed to mirror audit trail to s3")
		return
	}
	log.WithFields(logger.Fields{"bucket": t.bucket, "key": t.key}).Debug("audit trail mirrored to s3")
}

func mirrorKey(prefix, path string) string {
	base := filepath.Base(path)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return base
	}
	return prefix + "/" + base
}
