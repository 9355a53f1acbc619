package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Nasko29/progimage-backend/internal/config"
	"github.com/Nasko29/progimage-backend/internal/domain"
	"github.com/Nasko29/progimage-backend/internal/repository"
	"github.com/Nasko29/progimage-backend/pkg/utils"
)

// ImageService orchestrates the registries, the object store, and the
// converter for the upload, download, and convert operations.
type ImageService interface {
	Upload(ctx context.Context, clientID, filename string, body io.Reader, size int64) (*domain.Image, error)
	Download(ctx context.Context, clientID, uid string) (string, error)
	Convert(ctx context.Context, clientID, uid, targetExt string) (string, error)
}

type imageService struct {
	imageRepo  repository.ImageRepository
	objectRepo repository.ObjectRepository
	converter  *utils.Converter
	cfg        *config.Config
	log        *zap.Logger
}

func NewImageService(
	imageRepo repository.ImageRepository,
	objectRepo repository.ObjectRepository,
	converter *utils.Converter,
	cfg *config.Config,
	log *zap.Logger,
) ImageService {
	return &imageService{
		imageRepo:  imageRepo,
		objectRepo: objectRepo,
		converter:  converter,
		cfg:        cfg,
		log:        log,
	}
}

func (s *imageService) Upload(ctx context.Context, clientID, filename string, body io.Reader, size int64) (*domain.Image, error) {
	uid := uuid.NewString()
	image := domain.NewImage(uid, clientID, filename)
	image.Size = size

	contentType := utils.ContentTypeFor(image.Extension)
	if err := s.objectRepo.Upload(ctx, image.Index, body, size, contentType); err != nil {
		return nil, err
	}

	if err := s.imageRepo.Create(ctx, image); err != nil {
		return nil, err
	}

	s.log.Info("Image uploaded",
		zap.String("uid", uid),
		zap.String("clientid", clientID),
		zap.String("filename", filename))

	return image, nil
}

func (s *imageService) Download(ctx context.Context, clientID, uid string) (string, error) {
	image, err := s.imageRepo.Get(ctx, clientID, uid)
	if err != nil {
		return "", err
	}

	return s.objectRepo.PresignURL(ctx, image.Index, s.cfg.App.PresignTTL)
}

// Convert re-encodes the original blob of uid into targetExt. When the
// target matches the image's current extension it short-circuits to the
// download behavior: no new record, no new blob. Otherwise the derivative
// is stored as a new image record under the same uid; re-converting to the
// same target overwrites the earlier derivative, never the original.
func (s *imageService) Convert(ctx context.Context, clientID, uid, targetExt string) (string, error) {
	targetExt = strings.ToLower(strings.TrimPrefix(targetExt, "."))
	if _, err := utils.TargetFormat(targetExt); err != nil {
		return "", err
	}

	image, err := s.imageRepo.Get(ctx, clientID, uid)
	if err != nil {
		return "", err
	}

	if image.Extension == targetExt {
		return s.objectRepo.PresignURL(ctx, image.Index, s.cfg.App.PresignTTL)
	}

	body, err := s.objectRepo.Download(ctx, image.Index)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read blob %s: %v: %w", image.Index, err, domain.ErrStorage)
	}

	converted, err := s.converter.Convert(data, targetExt)
	if err != nil {
		return "", err
	}

	derived := domain.NewImage(uid, clientID, domain.WithExtension(image.Filename, targetExt))
	derived.Size = int64(len(converted))
	derived.Derived = true

	contentType := utils.ContentTypeFor(targetExt)
	if err := s.objectRepo.Upload(ctx, derived.Index, bytes.NewReader(converted), derived.Size, contentType); err != nil {
		return "", err
	}

	if err := s.imageRepo.Create(ctx, derived); err != nil {
		return "", err
	}

	s.log.Info("Image converted",
		zap.String("uid", uid),
		zap.String("clientid", clientID),
		zap.String("from", image.Extension),
		zap.String("to", targetExt))

	return s.objectRepo.PresignURL(ctx, derived.Index, s.cfg.App.PresignTTL)
}
