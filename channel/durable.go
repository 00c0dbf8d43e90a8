package channel

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config names the bucket, region, and endpoint a durable upload
// targets, grounded on quarry/lode/client_s3.go's S3Config: the same
// region/endpoint/path-style override surface for S3-compatible
// providers (Cloudflare R2, MinIO).
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// DurableSpec opts a Path channel into an S3 upload of its finished
// file once the channel's Writer has closed it. This is additive to the
// local-disk Path channel and never required for core drain semantics.
type DurableSpec struct {
	Bucket string
	Key    string
	client *s3.Client
}

// NewDurableSpec builds a DurableSpec with a fresh S3 client resolved
// from the default AWS credential chain, matching
// quarry/lode/client_s3.go's NewLodeS3Client construction.
func NewDurableSpec(ctx context.Context, cfg S3Config, key string) (*DurableSpec, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("channel: durable upload requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("channel: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &DurableSpec{
		Bucket: cfg.Bucket,
		Key:    key,
		client: s3.NewFromConfig(awsCfg, s3Opts...),
	}, nil
}

// Upload reads path and puts its contents to the configured bucket/key.
// Called by the Coordinator after the Path channel's Writer has closed
// the file and the child has exited, so the upload sees the complete
// contents.
func (d *DurableSpec) Upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("channel: durable upload: open %s: %w", path, err)
	}
	defer f.Close()

	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &d.Bucket,
		Key:    &d.Key,
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("channel: durable upload: put s3://%s/%s: %w", d.Bucket, d.Key, err)
	}
	return nil
}

// SetDurable attaches d to the Path channel so the Coordinator can find
// it after the channel's Writer has closed the file. A nil d clears any
// previously attached spec.
func (p *pathChannel) SetDurable(d *DurableSpec) { p.durable = d }

// Durable returns the DurableSpec attached to this Path channel, or nil
// if none was configured.
func (p *pathChannel) Durable() *DurableSpec { return p.durable }

// AsDurablePath type-asserts a Channel as a Path channel exposing the
// durable-upload surface, for the Coordinator's post-drain upload step.
func AsDurablePath(c Channel) (interface {
	SetDurable(*DurableSpec)
	Durable() *DurableSpec
	Path() string
}, bool) {
	p, ok := c.(*pathChannel)
	return p, ok
}
