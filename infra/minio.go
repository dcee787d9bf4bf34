package infra

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/autonmap/scan-orchestrator/config"
)

// MinioClient archives raw XML scan reports. The archive is best-effort:
// Postgres stays the source of truth for results, MinIO keeps a copy for
// offline analysis and bulk export.
type MinioClient struct {
	Client   *minio.Client
	Bucket   string
	Endpoint string
}

func InitMinioClient(cfg *config.EnvConfig) (*MinioClient, error) {
	endpoint := cfg.Minio.Endpoint
	if endpoint == "" {
		return nil, fmt.Errorf("MinIO endpoint is not configured")
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.RootUser, cfg.Minio.RootPassword, ""),
		Secure: false,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := minioClient.BucketExists(ctx, cfg.Minio.ResultsBucket)
	if err != nil {
		return nil, fmt.Errorf("checking results bucket: %w", err)
	}
	if !exists {
		if err := minioClient.MakeBucket(ctx, cfg.Minio.ResultsBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating results bucket: %w", err)
		}
	}

	log.Println("Connected to MinIO:", endpoint)

	return &MinioClient{
		Client:   minioClient,
		Bucket:   cfg.Minio.ResultsBucket,
		Endpoint: endpoint,
	}, nil
}

// ArchiveResult stores the raw XML report under scans/<id>.xml.
func (m *MinioClient) ArchiveResult(ctx context.Context, scanID uuid.UUID, xmlReport []byte) error {
	key := fmt.Sprintf("scans/%s.xml", scanID)
	_, err := m.Client.PutObject(ctx, m.Bucket, key,
		bytes.NewReader(xmlReport), int64(len(xmlReport)),
		minio.PutObjectOptions{ContentType: "application/xml"},
	)
	if err != nil {
		return fmt.Errorf("archiving scan result %s: %w", scanID, err)
	}
	return nil
}
