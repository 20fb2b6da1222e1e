package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/core"
	"github.com/BDicksmusic/PDFsDropbox-to-Notion-sub000/internal/models"
)

// presignExpiry keeps links alive long enough for a reader following a page
// link days later. S3 caps presigned URLs at seven days.
const presignExpiry = 7 * 24 * time.Hour

// S3Client watches a bucket prefix as a drop folder. Object keys play the
// role of file paths; share links are presigned GETs.
type S3Client struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

var _ core.SourceClient = (*S3Client)(nil)

func NewS3Client(ctx context.Context, accessKey, secretKey, region, bucket string) (*S3Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Client{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}, nil
}

func (c *S3Client) Backend() models.Backend { return models.BackendS3 }

// ListFolder lists objects directly under the prefix. The delimiter keeps
// nested "folders" out; they come back as common prefixes and are surfaced
// as folder entries so the caller can skip them uniformly.
func (c *S3Client) ListFolder(ctx context.Context, prefix string) ([]models.RawFileEntry, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var entries []models.RawFileEntry
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			entries = append(entries, models.RawFileEntry{
				Backend:  models.BackendS3,
				Name:     path.Base(strings.TrimSuffix(aws.ToString(cp.Prefix), "/")),
				Path:     aws.ToString(cp.Prefix),
				IsFolder: true,
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue // the prefix marker object itself
			}
			entries = append(entries, models.RawFileEntry{
				Backend:  models.BackendS3,
				Name:     path.Base(key),
				Path:     key,
				Size:     aws.ToInt64(obj.Size),
				Modified: aws.ToTime(obj.LastModified),
				Revision: strings.Trim(aws.ToString(obj.ETag), `"`),
			})
		}
	}
	return entries, nil
}

func (c *S3Client) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: read: %w", key, err)
	}
	return data, nil
}

// ShareLink presigns a GET for the object.
func (c *S3Client) ShareLink(ctx context.Context, key string) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", key, err)
	}
	return req.URL, nil
}
