package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Nasko29/progimage-backend/internal/domain"
	"github.com/Nasko29/progimage-backend/internal/repository"
)

// ClientService handles the client lifecycle: registration, credential
// checks, and the cascading delete of a client's records and blobs.
type ClientService interface {
	Register(ctx context.Context) (*domain.Client, error)
	Authenticate(ctx context.Context, apikey string) (*domain.Client, error)
	Deregister(ctx context.Context, apikey string) error
}

type clientService struct {
	clientRepo repository.ClientRepository
	imageRepo  repository.ImageRepository
	objectRepo repository.ObjectRepository
	log        *zap.Logger
}

func NewClientService(
	clientRepo repository.ClientRepository,
	imageRepo repository.ImageRepository,
	objectRepo repository.ObjectRepository,
	log *zap.Logger,
) ClientService {
	return &clientService{
		clientRepo: clientRepo,
		imageRepo:  imageRepo,
		objectRepo: objectRepo,
		log:        log,
	}
}

func (s *clientService) Register(ctx context.Context) (*domain.Client, error) {
	return s.clientRepo.Create(ctx)
}

// Authenticate resolves an API key to its client. An unknown key reports
// ErrUnauthorized rather than ErrNotFound so handlers answer 403, not 404.
func (s *clientService) Authenticate(ctx context.Context, apikey string) (*domain.Client, error) {
	client, err := s.clientRepo.Get(ctx, apikey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("apikey %s: %w", apikey, domain.ErrUnauthorized)
		}
		return nil, err
	}
	return client, nil
}

// Deregister removes the client record, then every image record and every
// blob under the client's key prefix. Succeeds even when the client owned
// no images.
func (s *clientService) Deregister(ctx context.Context, apikey string) error {
	if err := s.clientRepo.Delete(ctx, apikey); err != nil {
		return err
	}

	records, err := s.imageRepo.DeleteByClient(ctx, apikey)
	if err != nil {
		return err
	}

	blobs, err := s.objectRepo.DeletePrefix(ctx, apikey+"/")
	if err != nil {
		return err
	}

	s.log.Info("Client deregistered",
		zap.String("apikey", apikey),
		zap.Int("records", records),
		zap.Int("blobs", blobs))

	return nil
}
