package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"smartqr-backend/internal/domain"
	"smartqr-backend/internal/domain/ports/adapter"
	"smartqr-backend/internal/domain/ports/repository"
	"smartqr-backend/internal/infra/logging"
)

// Compile-time check
var _ MediaUseCase = (*mediaUC)(nil)

type MediaUseCase interface {
	// ReplaceCandidateImage uploads a new profile picture and returns its public url.
	ReplaceCandidateImage(ctx context.Context, userID string, obj adapter.UploadObject) (string, error)
}

type mediaUC struct {
	candidates repository.CandidateRepository
	storage    adapter.ObjectStorage
	log        *zerolog.Logger
}

func NewMediaUseCase(candidates repository.CandidateRepository, storage adapter.ObjectStorage, logger *zerolog.Logger) *mediaUC {
	return &mediaUC{candidates: candidates, storage: storage, log: logger}
}

func (u *mediaUC) ReplaceCandidateImage(ctx context.Context, userID string, obj adapter.UploadObject) (string, error) {
	if obj.Body == nil {
		return "", fmt.Errorf("%w: file is required", domain.ErrInvalidArgument)
	}
	c, err := u.candidates.FindByUserID(ctx, repository.NoTX, userID)
	if err != nil {
		return "", err
	}
	log := logging.With(ctx, u.log)

	key, err := u.storage.Upload(ctx, adapter.FolderProfilePicture, obj)
	if err != nil {
		return "", err
	}
	if err := u.candidates.SetImageKey(ctx, repository.NoTX, c.ID, key); err != nil {
		if derr := u.storage.Delete(ctx, key); derr != nil {
			log.Warn().Err(derr).Str("key", key).Msg("orphaned upload not removed")
		}
		return "", err
	}

	if c.ImageKey != nil && *c.ImageKey != "" && *c.ImageKey != key {
		if err := u.storage.Delete(ctx, *c.ImageKey); err != nil {
			log.Warn().Err(err).Str("key", *c.ImageKey).Msg("old image not deleted")
		}
	}
	return u.storage.PublicURL(key), nil
}
