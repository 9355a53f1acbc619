package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/Nasko29/progimage-backend/internal/domain"
)

const imageKeyPrefix = "image:"

// ImageRepository persists image records. Records are keyed by their
// storage index, so the original and every converted derivative of a uid
// live side by side under image:<clientid>/<uid>/.
type ImageRepository interface {
	Create(ctx context.Context, image *domain.Image) error
	Get(ctx context.Context, clientID, uid string) (*domain.Image, error)
	DeleteByClient(ctx context.Context, clientID string) (int, error)
}

type imageRepository struct {
	db  *badger.DB
	log *zap.Logger
}

func NewImageRepository(db *badger.DB, log *zap.Logger) ImageRepository {
	return &imageRepository{db: db, log: log}
}

func (r *imageRepository) Create(_ context.Context, image *domain.Image) error {
	if image.Filename == "" {
		return fmt.Errorf("empty filename: %w", domain.ErrValidation)
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(image)
		if err != nil {
			return fmt.Errorf("failed to marshal image: %w", err)
		}
		return txn.Set([]byte(imageKeyPrefix+image.Index), data)
	})
	if err != nil {
		r.log.Error("Failed to create image record",
			zap.String("index", image.Index),
			zap.Error(err))
		return fmt.Errorf("create image: %v: %w", err, domain.ErrStorage)
	}

	r.log.Info("Image record created",
		zap.String("uid", image.UID),
		zap.String("index", image.Index),
		zap.Bool("derived", image.Derived))

	return nil
}

// Get returns the original (non-derived) record for a uid, scoped to one
// client. A uid owned by another client is indistinguishable from an
// unknown one.
func (r *imageRepository) Get(_ context.Context, clientID, uid string) (*domain.Image, error) {
	prefix := []byte(imageKeyPrefix + clientID + "/" + uid + "/")

	var found *domain.Image
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var image domain.Image
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &image)
			})
			if err != nil {
				return err
			}
			if !image.Derived {
				found = &image
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get image: %v: %w", err, domain.ErrStorage)
	}
	if found == nil {
		return nil, fmt.Errorf("image %s: %w", uid, domain.ErrNotFound)
	}

	return found, nil
}

// DeleteByClient purges every image record a client owns and returns how
// many were removed.
func (r *imageRepository) DeleteByClient(_ context.Context, clientID string) (int, error) {
	prefix := []byte(imageKeyPrefix + clientID + "/")

	var keys [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("list images: %v: %w", err, domain.ErrStorage)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("Failed to purge image records",
			zap.String("clientid", clientID),
			zap.Error(err))
		return 0, fmt.Errorf("purge images: %v: %w", err, domain.ErrStorage)
	}

	r.log.Info("Image records purged",
		zap.String("clientid", clientID),
		zap.Int("count", len(keys)))

	return len(keys), nil
}
