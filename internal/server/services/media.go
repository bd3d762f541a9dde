package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/channelhub/internal/common"
	"github.com/dmitrijs2005/channelhub/internal/logging"
	"github.com/dmitrijs2005/channelhub/internal/server/config"
	"github.com/dmitrijs2005/channelhub/internal/server/models"
	"github.com/dmitrijs2005/channelhub/internal/server/repositories/repomanager"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// MediaService hands out presigned object-storage URLs for profile images.
// Image bytes never pass through the server.
type MediaService struct {
	repomanager repomanager.RepositoryManager
	config      *config.Config
	logger      logging.Logger
	now         func() time.Time

	once      sync.Once
	presign   *s3.PresignClient
	presignErr error
}

func NewMediaService(m repomanager.RepositoryManager, cfg *config.Config, l logging.Logger) *MediaService {
	return &MediaService{
		repomanager: m,
		config:      cfg,
		logger:      l.With("module", "media_service"),
		now:         time.Now,
	}
}

// StorageKey builds users/<id>/<kind>/<yyyy>/<mm>/<uuid>.
func StorageKey(userID string, kind models.MediaKind, at time.Time) string {
	return fmt.Sprintf("users/%s/%s/%04d/%02d/%s", userID, kind, at.Year(), int(at.Month()), uuid.New())
}

func (s *MediaService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	s.once.Do(func() {
		cfg, err := loadDefaultAWSConfig(ctx,
			awsconfig.WithRegion(s.config.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				s.config.S3AccessKey,
				s.config.S3SecretKey,
				"",
			)))
		if err != nil {
			s.presignErr = err
			return
		}

		client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
			if s.config.S3BaseEndpoint != "" {
				o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			}
			o.UsePathStyle = true
		})
		s.presign = newS3PresignClient(client)
	})
	return s.presign, s.presignErr
}

func (s *MediaService) UpdateAvatar(ctx context.Context, userID string) (*models.MediaUpload, error) {
	return s.upload(ctx, userID, models.MediaAvatar)
}

func (s *MediaService) UpdateCoverImage(ctx context.Context, userID string) (*models.MediaUpload, error) {
	return s.upload(ctx, userID, models.MediaCoverImage)
}

// upload presigns a PUT for a fresh key and stores the key on the user.
func (s *MediaService) upload(ctx context.Context, userID string, kind models.MediaKind) (*models.MediaUpload, error) {
	pc, err := s.getPresignClient(ctx)
	if err != nil {
		s.logger.Error(ctx, "s3 client setup failed", "error", err)
		return nil, internal(err)
	}

	now := s.now()
	bucket := s.config.S3Bucket
	key := StorageKey(userID, kind, now)

	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.MediaURLExpiry))
	if err != nil {
		s.logger.Error(ctx, "presign put failed", "error", err)
		return nil, internal(err)
	}

	if _, err := s.repomanager.Users().UpdateMediaKey(ctx, userID, kind, key); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorUnauthorized, msgInvalidAccess)
		}
		return nil, internal(err)
	}

	s.logger.Info(ctx, "media upload issued", "user_id", userID, "kind", kind, "key", key)
	return &models.MediaUpload{
		Kind:      kind,
		Key:       key,
		UploadURL: req.URL,
		ExpiresAt: now.Add(s.config.MediaURLExpiry),
	}, nil
}

// MediaURL presigns a GET for a stored key.
func (s *MediaService) MediaURL(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", common.NewError(common.ErrorValidation, "media key is required")
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return "", internal(err)
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.MediaURLExpiry))
	if err != nil {
		return "", internal(err)
	}
	return req.URL, nil
}
