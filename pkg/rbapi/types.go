// Package rbapi is a small client for the Review Board web API.
package rbapi

import (
	"net/url"
	"strconv"
)

// Repository is a repository configured on the server.
type Repository struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	MirrorPath string `json:"mirror_path"`
	Tool       string `json:"tool"`
}

// ReviewRequest is a review request as returned by the list and item
// resources.
type ReviewRequest struct {
	ID             int            `json:"id"`
	Summary        string         `json:"summary"`
	Description    string         `json:"description"`
	Status         string         `json:"status"`
	Public         bool           `json:"public"`
	Branch         string         `json:"branch"`
	CommitID       string         `json:"commit_id"`
	IssueOpenCount int            `json:"issue_open_count"`
	ShipItCount    int            `json:"ship_it_count"`
	ExtraData      map[string]any `json:"extra_data"`
	AbsoluteURL    string         `json:"absolute_url"`

	// Draft is filled in when the list is requested with expand=draft.
	Draft *Draft `json:"draft,omitempty"`
}

// HasDraft reports whether the review request has unpublished changes.
func (r *ReviewRequest) HasDraft() bool {
	return r.Draft != nil || !r.Public
}

// ExtraString returns a string value from extra_data and whether the key
// is present.
func (r *ReviewRequest) ExtraString(key string) (string, bool) {
	v, ok := r.ExtraData[key]
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, true
}

// Draft is the unpublished state of a review request.
type Draft struct {
	ID          int    `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// Diff is one uploaded diff revision.
type Diff struct {
	ID       int    `json:"id"`
	Revision int    `json:"revision"`
	Name     string `json:"name"`
}

// ReviewRequestQuery filters ListReviewRequests.
type ReviewRequestQuery struct {
	FromUser     string
	Status       string
	RepositoryID int
	ExpandDraft  bool
}

func (q ReviewRequestQuery) values() url.Values {
	v := url.Values{}
	if q.FromUser != "" {
		v.Set("from-user", q.FromUser)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.RepositoryID != 0 {
		v.Set("repository", strconv.Itoa(q.RepositoryID))
	}
	if q.ExpandDraft {
		v.Set("expand", "draft")
	}
	return v
}

// DiffUpload is the payload of UploadDiff.
type DiffUpload struct {
	Diff         []byte
	ParentDiff   []byte
	BaseDir      string
	BaseCommitID string
}

// DraftUpdate is the payload of UpdateDraft.
type DraftUpdate struct {
	Summary     string
	Description string
	Branch      string
	Public      bool
}

type link struct {
	Href  string `json:"href"`
	Title string `json:"title"`
}

type listLinks struct {
	Next link `json:"next"`
}

type sessionResponse struct {
	Session struct {
		Authenticated bool `json:"authenticated"`
		Links         struct {
			User link `json:"user"`
		} `json:"links"`
	} `json:"session"`
}

type repositoryList struct {
	Repositories []Repository `json:"repositories"`
	TotalResults int          `json:"total_results"`
	Links        listLinks    `json:"links"`
}

type reviewRequestList struct {
	ReviewRequests []ReviewRequest `json:"review_requests"`
	TotalResults   int             `json:"total_results"`
	Links          listLinks       `json:"links"`
}

type reviewRequestResponse struct {
	ReviewRequest ReviewRequest `json:"review_request"`
}

type diffResponse struct {
	Diff Diff `json:"diff"`
}

type draftResponse struct {
	Draft Draft `json:"draft"`
}
