package publish

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/AdamBeresnev/dbc-bracket/internal/config"
	"github.com/AdamBeresnev/dbc-bracket/internal/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	keyPrefix   = "brackets/"
	contentType = "text/html; charset=utf-8"
)

var logger = logging.GetZeroLogger("publish", nil)

var ErrNotConfigured = errors.New("publishing is not configured")

// objectPutter is the part of *s3.Client the uploader needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader stores rendered bracket pages in an R2 bucket.
type Uploader struct {
	client        objectPutter
	bucket        string
	publicBaseURL string
}

func NewUploader(ctx context.Context, cfg config.PublishConfig) (*Uploader, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Bucket == "" || cfg.PublicBaseURL == "" {
		return nil, errors.Wrap(ErrNotConfigured, "account id, keys, bucket and public base url are required")
	}

	sdkCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load SDK config for R2")
	}

	endpoint := "https://" + cfg.AccountID + ".r2.cloudflarestorage.com"
	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &Uploader{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

// Upload writes html under a fresh key and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, html []byte) (string, error) {
	key := keyPrefix + uuid.NewString() + ".html"

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(html),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to upload object (key: %s)", key)
	}

	location, err := publicURL(u.publicBaseURL, key)
	if err != nil {
		return "", err
	}
	logger.Info().Str("key", key).Int("bytes", len(html)).Msg("Bracket published.")
	return location, nil
}

func publicURL(base, key string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "invalid public base url %q", base)
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}
	return baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(key, "/")}).String(), nil
}
