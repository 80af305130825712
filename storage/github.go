package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/google/go-github/v66/github"
)

// GitHubConfig locates the directory of a repository holding the blobs
type GitHubConfig struct {
	Owner  string
	Repo   string
	Branch string // empty means the repository's default branch
	Dir    string // directory inside the repository, e.g. "data"
}

// GitHubStore implements Remote with one JSON file per blob committed to a
// GitHub repository through the contents API. The version token is the git
// blob sha: updates send it back and GitHub rejects stale ones with 409.
type GitHubStore struct {
	client *github.Client
	cfg    GitHubConfig
}

// NewGitHubStore creates a store over an authenticated client
func NewGitHubStore(client *github.Client, cfg GitHubConfig) *GitHubStore {
	return &GitHubStore{client: client, cfg: cfg}
}

// NewGitHubClient returns a client authenticated with a personal access token
func NewGitHubClient(token string) *github.Client {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return client
}

func (g *GitHubStore) path(name string) string {
	return path.Join(g.cfg.Dir, name+".json")
}

func statusOf(err error) int {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	return 0
}

// ReadBlob implements Remote.ReadBlob
func (g *GitHubStore) ReadBlob(ctx context.Context, name string) (Blob, error) {
	p := g.path(name)
	file, _, _, err := g.client.Repositories.GetContents(ctx, g.cfg.Owner, g.cfg.Repo, p,
		&github.RepositoryContentGetOptions{Ref: g.cfg.Branch})
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return Blob{}, nil
		}
		return Blob{}, fmt.Errorf("github read %s: %w", p, err)
	}
	if file == nil {
		return Blob{}, fmt.Errorf("github read %s: path is a directory", p)
	}

	content, err := file.GetContent()
	if err != nil {
		return Blob{}, fmt.Errorf("github decode %s: %w", p, err)
	}
	return Blob{Content: []byte(content), Version: file.GetSHA()}, nil
}

// WriteBlob implements Remote.WriteBlob
func (g *GitHubStore) WriteBlob(ctx context.Context, name string, content []byte, expectedVersion string) (string, error) {
	p := g.path(name)
	opts := &github.RepositoryContentFileOptions{
		Message: github.String("Update " + name),
		Content: content,
	}
	if g.cfg.Branch != "" {
		opts.Branch = github.String(g.cfg.Branch)
	}

	var res *github.RepositoryContentResponse
	var err error
	if expectedVersion == "" {
		opts.Message = github.String("Create " + name)
		res, _, err = g.client.Repositories.CreateFile(ctx, g.cfg.Owner, g.cfg.Repo, p, opts)
	} else {
		opts.SHA = github.String(expectedVersion)
		res, _, err = g.client.Repositories.UpdateFile(ctx, g.cfg.Owner, g.cfg.Repo, p, opts)
	}
	if err != nil {
		switch statusOf(err) {
		case http.StatusConflict, http.StatusUnprocessableEntity:
			return "", fmt.Errorf("github write %s: %v: %w", p, err, ErrVersionConflict)
		}
		return "", fmt.Errorf("github write %s: %w", p, err)
	}
	if res == nil || res.Content == nil {
		return "", fmt.Errorf("github write %s: response carried no content sha", p)
	}
	return res.Content.GetSHA(), nil
}

// RemoteDrafts stores drafts as "<collection>_drafts" blobs in a Remote, so
// unsynced edits can follow the user across devices. Each Set is a
// conditional write against the version read just before it.
type RemoteDrafts struct {
	remote Remote
}

// NewRemoteDrafts adapts remote into a Drafts store
func NewRemoteDrafts(remote Remote) *RemoteDrafts {
	return &RemoteDrafts{remote: remote}
}

// Get implements Drafts.Get
func (d *RemoteDrafts) Get(ctx context.Context, key string) ([]byte, error) {
	blob, err := d.remote.ReadBlob(ctx, key)
	if err != nil {
		return nil, err
	}
	return blob.Content, nil
}

// Set implements Drafts.Set
func (d *RemoteDrafts) Set(ctx context.Context, key string, value []byte) error {
	blob, err := d.remote.ReadBlob(ctx, key)
	if err != nil {
		return err
	}
	_, err = d.remote.WriteBlob(ctx, key, value, blob.Version)
	return err
}
