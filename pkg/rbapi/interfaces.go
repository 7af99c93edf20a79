package rbapi

import (
	"context"
)

// API is the subset of the Review Board web API the CLI uses.
type API interface {
	// CurrentUser returns the logged-in user's name.
	CurrentUser(ctx context.Context) (string, error)

	// FindRepositoryID looks a repository up by path, then by name.
	FindRepositoryID(ctx context.Context, path, name string) (int, error)

	// ListReviewRequests returns all review requests matching query.
	ListReviewRequests(ctx context.Context, query ReviewRequestQuery) ([]ReviewRequest, error)

	// GetReviewRequest fetches one review request.
	GetReviewRequest(ctx context.Context, id int) (*ReviewRequest, error)

	// CreateReviewRequest creates a new review request.
	CreateReviewRequest(ctx context.Context, repositoryID int, commitID string) (*ReviewRequest, error)

	// UploadDiff attaches a diff to a review request.
	UploadDiff(ctx context.Context, reviewRequestID int, upload DiffUpload) (*Diff, error)

	// UpdateDraft edits a review request's draft.
	UpdateDraft(ctx context.Context, reviewRequestID int, update DraftUpdate) (*Draft, error)

	// ReviewRequestURL is the web page for a review request.
	ReviewRequestURL(id int) string
}
