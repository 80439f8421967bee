package service

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/h2non/filetype"
	cfg "github.com/maheshrc27/postwatcher/configs"
	"github.com/maheshrc27/postwatcher/internal/models"
	"github.com/rs/zerolog/log"
)

// AssetStore lists the images uploaded to the bucket.
type AssetStore interface {
	// ListSince returns images created strictly after since, oldest first.
	ListSince(ctx context.Context, since time.Time) ([]models.Asset, error)
	// ListAll returns every image up to the availability listing limit.
	ListAll(ctx context.Context) ([]models.Asset, error)
}

type R2Service struct {
	client s3.ListObjectsV2APIClient
	config cfg.R2
}

func NewR2Service(ctx context.Context, c cfg.R2) (*R2Service, error) {
	client, err := R2Client(ctx, c)
	if err != nil {
		return nil, err
	}
	return &R2Service{client: client, config: c}, nil
}

func R2Client(ctx context.Context, c cfg.R2) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		log.Error().Err(err).Msg("Load R2 client config")
		return nil, fmt.Errorf("load r2 config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID))
	}), nil
}

func (r *R2Service) ListSince(ctx context.Context, since time.Time) ([]models.Asset, error) {
	var assets []models.Asset
	err := r.walk(ctx, func(a models.Asset) bool {
		if a.CreatedAt.After(since) {
			assets = append(assets, a)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].CreatedAt.Before(assets[j].CreatedAt)
	})
	if limit := r.config.NewUploadsLimit; limit > 0 && len(assets) > limit {
		assets = assets[:limit]
	}
	return assets, nil
}

func (r *R2Service) ListAll(ctx context.Context) ([]models.Asset, error) {
	limit := r.config.AvailabilityLimit
	var assets []models.Asset
	err := r.walk(ctx, func(a models.Asset) bool {
		assets = append(assets, a)
		return limit <= 0 || len(assets) < limit
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// walk pages through the bucket and calls fn for every image object until fn
// returns false.
func (r *R2Service) walk(ctx context.Context, fn func(models.Asset) bool) error {
	p := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.config.BucketName),
		Prefix: aws.String(r.config.Prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			log.Error().Err(err).Str("bucket", r.config.BucketName).Msg("List R2 objects")
			return fmt.Errorf("list r2 objects: %w", err)
		}
		for _, obj := range page.Contents {
			asset, ok := r.toAsset(obj)
			if !ok {
				continue
			}
			if !fn(asset) {
				return nil
			}
		}
	}
	return nil
}

func (r *R2Service) toAsset(obj types.Object) (models.Asset, bool) {
	key := aws.ToString(obj.Key)
	format, ok := ImageFormat(key)
	if !ok {
		return models.Asset{}, false
	}
	return models.Asset{
		ID:        key,
		CreatedAt: aws.ToTime(obj.LastModified).UTC(),
		Bytes:     aws.ToInt64(obj.Size),
		Format:    format,
		URL:       PublicURL(r.config.PublicURL, key),
	}, true
}

// ImageFormat returns the normalised image extension of key ("jpg", "png",
// "webp", ...) and whether key names an image at all.
func ImageFormat(key string) (string, bool) {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(key)), ".")
	if ext == "jpeg" {
		ext = "jpg"
	}
	if ext == "" || !filetype.IsSupported(ext) {
		return "", false
	}
	if filetype.GetType(ext).MIME.Type != "image" {
		return "", false
	}
	return ext, true
}

// PublicURL joins the bucket's public base URL and an object key.
func PublicURL(base, key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(escaped, "/")
}
