package adapter

import (
	"context"
	"io"
)

// Upload folders accepted by object storage.
const (
	FolderProfilePicture    = "profile-picture"
	FolderEvent             = "event"
	FolderCV                = "cv"
	FolderPortfolio         = "portfolio"
	FolderPortfolioProjects = "portfolio/projects"
)

func ValidFolder(folder string) bool {
	switch folder {
	case FolderProfilePicture, FolderEvent, FolderCV, FolderPortfolio, FolderPortfolioProjects:
		return true
	}
	return false
}

type UploadObject struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type ObjectStorage interface {
	// Upload stores the object under folder and returns its key.
	Upload(ctx context.Context, folder string, obj UploadObject) (key string, err error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}
