// Package audit copies finalized recycling records to object storage. The
// database row stays authoritative; the archive is a write-once copy for
// compliance reporting.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/madhvv-7/E-waste-madhav/internal/models"
)

// Config points the archiver at an S3-compatible bucket. Empty keys fall back
// to the default AWS credential chain.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	AccessKey string
	SecretKey string
}

// ObjectPutter is the part of the S3 client the archiver uses.
type ObjectPutter interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// Entry is the archived document: the record plus the request it closed.
type Entry struct {
	Record     models.RecyclingRecord `json:"record"`
	RequestID  string                 `json:"request_id"`
	OwnerID    string                 `json:"owner_id"`
	AgentID    string                 `json:"agent_id,omitempty"`
	Address    string                 `json:"pickup_address"`
	Items      []models.Item          `json:"items"`
	ArchivedAt time.Time              `json:"archived_at"`
}

type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

func NewS3Archiver(client ObjectPutter, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// NewS3Client builds a client for cfg. Custom endpoints use path-style
// addressing, which most S3-compatible stores require.
func NewS3Client(cfg Config) (*s3.S3, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "aws session")
	}
	return s3.New(sess), nil
}

// Key is the object key a record is stored under, partitioned by completion day.
func (a *S3Archiver) Key(rec models.RecyclingRecord) string {
	day := rec.CompletionDate.UTC().Format("2006/01/02")
	return path.Join(a.prefix, "recycling", day, rec.PickupRequestID+".json")
}

func (a *S3Archiver) Archive(ctx context.Context, rec models.RecyclingRecord, req models.PickupRequest) error {
	entry := Entry{
		Record:     rec,
		RequestID:  req.ID,
		OwnerID:    req.OwnerID,
		Address:    req.PickupAddress,
		Items:      req.Items,
		ArchivedAt: time.Now().UTC(),
	}
	if req.AssignedAgentID != nil {
		entry.AgentID = *req.AssignedAgentID
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshal archive entry")
	}

	key := a.Key(rec)
	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("put s3://%s/%s", a.bucket, key))
	}
	return nil
}
