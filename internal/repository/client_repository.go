package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Nasko29/progimage-backend/internal/domain"
)

const clientKeyPrefix = "client:"

// ClientRepository persists client records keyed by API key.
type ClientRepository interface {
	Create(ctx context.Context) (*domain.Client, error)
	Get(ctx context.Context, apikey string) (*domain.Client, error)
	Delete(ctx context.Context, apikey string) error
}

type clientRepository struct {
	db  *badger.DB
	log *zap.Logger
}

func NewClientRepository(db *badger.DB, log *zap.Logger) ClientRepository {
	return &clientRepository{db: db, log: log}
}

func (r *clientRepository) Create(_ context.Context) (*domain.Client, error) {
	client := &domain.Client{
		APIKey:    uuid.NewString(),
		CreatedAt: time.Now(),
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(client)
		if err != nil {
			return fmt.Errorf("failed to marshal client: %w", err)
		}
		return txn.Set([]byte(clientKeyPrefix+client.APIKey), data)
	})
	if err != nil {
		r.log.Error("Failed to create client", zap.Error(err))
		return nil, fmt.Errorf("create client: %v: %w", err, domain.ErrStorage)
	}

	r.log.Info("Client created", zap.String("apikey", client.APIKey))

	return client, nil
}

func (r *clientRepository) Get(_ context.Context, apikey string) (*domain.Client, error) {
	var client domain.Client

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(clientKeyPrefix + apikey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &client)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("client %s: %w", apikey, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get client: %v: %w", err, domain.ErrStorage)
	}

	return &client, nil
}

// Delete removes the client record only; blob and image-record cleanup is
// orchestrated by the service layer.
func (r *clientRepository) Delete(_ context.Context, apikey string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(clientKeyPrefix + apikey))
	})
	if err != nil {
		r.log.Error("Failed to delete client",
			zap.String("apikey", apikey),
			zap.Error(err))
		return fmt.Errorf("delete client: %v: %w", err, domain.ErrStorage)
	}

	r.log.Info("Client deleted", zap.String("apikey", apikey))

	return nil
}
