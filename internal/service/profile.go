package service

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log"

	"github.com/disintegration/imaging"

	"github.com/daleapp/dale-backend/internal/apperr"
	"github.com/daleapp/dale-backend/internal/model"
	"github.com/daleapp/dale-backend/internal/repository"
	"github.com/daleapp/dale-backend/pkg/storage"
)

const (
	avatarBucket = "avatars"
	avatarSize   = 256
)

// ProfileService exposes profile reads, metadata updates and avatar upload.
type ProfileService struct {
	profiles *repository.ProfileRepository
	store    *storage.LocalStore
}

// NewProfileService creates a profile service.
func NewProfileService(profiles *repository.ProfileRepository, store *storage.LocalStore) *ProfileService {
	return &ProfileService{profiles: profiles, store: store}
}

// Get returns a profile by id.
func (s *ProfileService) Get(ctx context.Context, id string) (*model.Profile, error) {
	var p *model.Profile
	err := withRetry(ctx, func() error {
		var err error
		p, err = s.profiles.GetByID(ctx, id)
		return err
	})
	return p, err
}

// MetadataPatch carries the caller-mutable profile fields.
type MetadataPatch struct {
	FullName string `json:"full_name"`
	PhotoURL string `json:"photo_url"`
}

// UpdateMetadata patches the caller's profile metadata.
func (s *ProfileService) UpdateMetadata(ctx context.Context, userID string, patch MetadataPatch) (*model.Profile, error) {
	if userID == "" {
		return nil, apperr.AuthError{Msg: "missing caller identity"}
	}
	p, err := s.profiles.UpdateMetadata(ctx, userID, patch.FullName, patch.PhotoURL)
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

// UploadAvatar normalizes the uploaded image to a square JPEG, stores it in
// the avatar bucket and points the profile's photo_url at it.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID string, r io.Reader) (*model.Profile, error) {
	if userID == "" {
		return nil, apperr.AuthError{Msg: "missing caller identity"}
	}
	if s.store == nil {
		return nil, fmt.Errorf("profile: avatar store not configured")
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.ValidationError{Field: "avatar", Msg: "unsupported or corrupt image"}
	}

	thumb := imaging.Fill(img, avatarSize, avatarSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("profile: encode avatar: %w", err)
	}

	rel, err := s.store.Save(avatarBucket, userID+".jpg", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("profile: store avatar: %w", err)
	}

	photoURL := "/uploads/" + rel
	p, err := s.profiles.UpdateMetadata(ctx, userID, "", photoURL)
	if err != nil {
		return nil, classify(err)
	}

	log.Printf("[profile] updated avatar for %s", userID)
	return p, nil
}
