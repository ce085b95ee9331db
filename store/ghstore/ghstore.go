// Package ghstore is a store.Backend that keeps entries as files
// in a GitHub repository branch. Every write is a commit made
// through the contents API.
package ghstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/hashit/store"
)

// DefaultCommitMessage is used when Config.CommitMessage
// is empty.
const DefaultCommitMessage = "hashit: update {key}"

// Config holds the settings needed to create a Store.
type Config struct {
	// RepoOwner is the GitHub user or organisation
	// that owns the repository.
	RepoOwner string
	// Repo is the repository name (without owner).
	Repo string
	// Branch receives the commits. Empty means the
	// repository default branch.
	Branch string
	// Prefix is a directory inside the repository under
	// which keys are stored.
	Prefix string
	// AccessToken is a personal access token or
	// GitHub App token used for authentication.
	AccessToken string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave
	// empty for github.com.
	EnterpriseHost string
	// BaseURL overrides the API endpoint entirely
	// (e.g. a test server). It wins over EnterpriseHost.
	BaseURL string
	// CommitMessage may contain a {key} placeholder.
	CommitMessage string
}

// Store reads and writes repository files.
type Store struct {
	client    *gh.Client
	repoOwner string
	repo      string
	branch    string
	prefix    string
	message   string
}

var _ store.Backend = (*Store)(nil)

// New validates cfg and returns a Store.
func New(cfg Config) (*Store, error) {
	const errCtx = "creating github store"

	if cfg.RepoOwner == "" {
		return nil, fmt.Errorf(
			"%s: repo owner must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(nil).
		WithAuthToken(cfg.AccessToken)

	switch {
	case cfg.BaseURL != "":
		base, err := url.Parse(
			strings.TrimSuffix(cfg.BaseURL, "/") + "/",
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: base url: %w", errCtx, err,
			)
		}

		client.BaseURL = base
	case cfg.EnterpriseHost != "":
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	msg := cfg.CommitMessage
	if msg == "" {
		msg = DefaultCommitMessage
	}

	return &Store{
		client:    client,
		repoOwner: cfg.RepoOwner,
		repo:      cfg.Repo,
		branch:    cfg.Branch,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		message:   msg,
	}, nil
}

// FilePath returns the repository path backing key.
func (s *Store) FilePath(key string) string {
	return path.Join(s.prefix, strings.TrimLeft(key, "/"))
}

// fetch returns the file content and blob SHA. A missing
// file yields store.ErrNotFound.
func (s *Store) fetch(
	ctx context.Context,
	key string,
) ([]byte, string, error) {
	fp := s.FilePath(key)

	var opts *gh.RepositoryContentGetOptions
	if s.branch != "" {
		opts = &gh.RepositoryContentGetOptions{Ref: s.branch}
	}

	file, _, resp, err := s.client.Repositories.GetContents(
		ctx, s.repoOwner, s.repo, fp, opts,
	)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, "", store.NotFound(fp, err)
	}

	if err != nil {
		return nil, "", store.IOError(fp, err)
	}

	if file == nil {
		return nil, "", store.IOError(
			fp, errors.New("path is a directory"),
		)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, "", store.IOError(fp, err)
	}

	return []byte(content), file.GetSHA(), nil
}

// Exists implements store.Backend.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, _, err := s.fetch(ctx, key)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}

	return false, err
}

// OpenRead implements store.Backend.
func (s *Store) OpenRead(
	ctx context.Context,
	key string,
) (io.ReadCloser, error) {
	by, _, err := s.fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(by)), nil
}

// OpenWrite implements store.Backend. The commit happens
// when the handle is closed.
func (s *Store) OpenWrite(
	ctx context.Context,
	key string,
	mode store.Mode,
) (io.WriteCloser, error) {
	var initial []byte

	if mode == store.Append {
		by, _, err := s.fetch(ctx, key)

		switch {
		case err == nil:
			initial = by
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	return store.NewCommitWriter(initial, func(content []byte) error {
		return s.put(ctx, key, content)
	}), nil
}

// Create implements store.Backend.
func (s *Store) Create(ctx context.Context, key string) error {
	return s.put(ctx, key, []byte{})
}

func (s *Store) put(
	ctx context.Context,
	key string,
	content []byte,
) error {
	const errCtx = "committing github file"

	fp := s.FilePath(key)

	_, sha, err := s.fetch(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	msg := strings.ReplaceAll(s.message, "{key}", key)
	opts := &gh.RepositoryContentFileOptions{
		Message: &msg,
		Content: content,
	}

	if s.branch != "" {
		opts.Branch = &s.branch
	}

	if sha != "" {
		opts.SHA = &sha
		_, _, err = s.client.Repositories.UpdateFile(
			ctx, s.repoOwner, s.repo, fp, opts,
		)
	} else {
		_, _, err = s.client.Repositories.CreateFile(
			ctx, s.repoOwner, s.repo, fp, opts,
		)
	}

	if err != nil {
		return store.IOError(fp, fmt.Errorf("%s: %w", errCtx, err))
	}

	slog.Debug(
		"committed entry",
		"repo", s.repoOwner+"/"+s.repo,
		"path", fp,
		"bytes", len(content),
	)

	return nil
}
