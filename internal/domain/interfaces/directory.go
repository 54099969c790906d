package interfaces

import (
	"context"

	domaintypes "devicekeys/internal/domain/types"
)

// DirectoryClient publishes and fetches public bundles, all with context.
type DirectoryClient interface {
	PublishBundle(ctx context.Context, user domaintypes.UserID, bundle domaintypes.PublicBundle) error
	FetchBundle(ctx context.Context, user domaintypes.UserID) (domaintypes.PublicBundle, error)
}
