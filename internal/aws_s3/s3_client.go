package aws_s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/IliaW/jamaah-scrape-worker/config"
	"github.com/IliaW/jamaah-scrape-worker/internal/cache"
	"github.com/IliaW/jamaah-scrape-worker/internal/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	crd "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SnapshotBucket stores one object per date at "<key_prefix>/<date>.json".
type SnapshotBucket struct {
	client *s3.Client
	cfg    *config.S3Config
	log    *slog.Logger
}

func NewSnapshotBucket(cfg *config.S3Config, log *slog.Logger) *SnapshotBucket {
	log.Info("connecting to s3...")
	ctx := context.Background()

	s3Config, err := awsCfg.LoadDefaultConfig(ctx,
		awsCfg.WithCredentialsProvider(crd.NewStaticCredentialsProvider(cfg.AwsAccessKey, cfg.AwsSecretKey, "")),
		awsCfg.WithRegion(cfg.Region),
		awsCfg.WithBaseEndpoint(cfg.AwsBaseEndpoint))
	if err != nil {
		log.Error("failed to load s3 config.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	// LocalStack does not support virtual host addressing, which s3 uses by default.
	var s3client *s3.Client
	if cfg.AwsAccessKey == "test" {
		log.Warn("test configuration for s3")
		s3client = s3.NewFromConfig(s3Config, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	} else {
		s3client = s3.NewFromConfig(s3Config)
	}
	log.Info("connected to s3")

	return &SnapshotBucket{
		client: s3client,
		cfg:    cfg,
		log:    log,
	}
}

func (bc *SnapshotBucket) Load(ctx context.Context, date string) (*model.DailySnapshot, error) {
	out, err := bc.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bc.cfg.BucketName),
		Key:    aws.String(bc.key(date)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot object: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	var s model.DailySnapshot
	if err = json.Unmarshal(body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (bc *SnapshotBucket) Save(ctx context.Context, s *model.DailySnapshot) error {
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = bc.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bc.cfg.BucketName),
		Key:         aws.String(bc.key(s.Date)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put snapshot object: %w", err)
	}
	bc.log.Debug("snapshot saved to s3.", slog.String("date", s.Date))
	return nil
}

func (bc *SnapshotBucket) key(date string) string {
	if bc.cfg.KeyPrefix == "" {
		return date + ".json"
	}
	return fmt.Sprintf("%s/%s.json", bc.cfg.KeyPrefix, date)
}
