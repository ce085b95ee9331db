// Package glstore is a store.Backend that keeps entries as files in
// a GitLab project branch, read raw and written as base64 commits
// through the repository files API.
package glstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/byte4ever/hashit/store"
)

// DefaultBranch is used when Config.Branch is empty.
const DefaultBranch = "main"

// DefaultCommitMessage is used when Config.CommitMessage
// is empty.
const DefaultCommitMessage = "hashit: update {key}"

// Config holds the settings needed to create a Store.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com").
	Host string
	// Repo is the full project path
	// (e.g. "org/project").
	Repo string
	// Branch receives the commits.
	Branch string
	// Prefix is a directory inside the project under
	// which keys are stored.
	Prefix string
	// AccessToken is a personal or project access
	// token used for authentication.
	AccessToken string
	// CommitMessage may contain a {key} placeholder.
	CommitMessage string
}

// Store reads and writes project files.
type Store struct {
	client  *gl.Client
	repo    string
	branch  string
	prefix  string
	message string
}

var _ store.Backend = (*Store)(nil)

// New validates cfg and returns a Store.
func New(cfg Config) (*Store, error) {
	const errCtx = "creating gitlab store"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	host := cfg.Host
	if host == "" {
		host = "https://gitlab.com"
	}

	client, err := gl.NewClient(
		cfg.AccessToken,
		gl.WithBaseURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	branch := cfg.Branch
	if branch == "" {
		branch = DefaultBranch
	}

	msg := cfg.CommitMessage
	if msg == "" {
		msg = DefaultCommitMessage
	}

	return &Store{
		client:  client,
		repo:    cfg.Repo,
		branch:  branch,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		message: msg,
	}, nil
}

// FilePath returns the project path backing key.
func (s *Store) FilePath(key string) string {
	return path.Join(s.prefix, strings.TrimLeft(key, "/"))
}

func (s *Store) fetch(ctx context.Context, key string) ([]byte, error) {
	fp := s.FilePath(key)

	by, resp, err := s.client.RepositoryFiles.GetRawFile(
		s.repo, fp,
		&gl.GetRawFileOptions{Ref: gl.Ptr(s.branch)},
		gl.WithContext(ctx),
	)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, store.NotFound(fp, err)
	}

	if err != nil {
		return nil, store.IOError(fp, err)
	}

	if by == nil {
		by = []byte{}
	}

	return by, nil
}

// Exists implements store.Backend.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.fetch(ctx, key)
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
	by, err := s.fetch(ctx, key)
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
		by, err := s.fetch(ctx, key)

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
	const errCtx = "committing gitlab file"

	fp := s.FilePath(key)

	exists, err := s.Exists(ctx, key)
	if err != nil {
		return err
	}

	msg := strings.ReplaceAll(s.message, "{key}", key)
	encoded := base64.StdEncoding.EncodeToString(content)

	if exists {
		_, _, err = s.client.RepositoryFiles.UpdateFile(
			s.repo, fp,
			&gl.UpdateFileOptions{
				Branch:        gl.Ptr(s.branch),
				Encoding:      gl.Ptr("base64"),
				Content:       gl.Ptr(encoded),
				CommitMessage: gl.Ptr(msg),
			},
			gl.WithContext(ctx),
		)
	} else {
		_, _, err = s.client.RepositoryFiles.CreateFile(
			s.repo, fp,
			&gl.CreateFileOptions{
				Branch:        gl.Ptr(s.branch),
				Encoding:      gl.Ptr("base64"),
				Content:       gl.Ptr(encoded),
				CommitMessage: gl.Ptr(msg),
			},
			gl.WithContext(ctx),
		)
	}

	if err != nil {
		return store.IOError(fp, fmt.Errorf("%s: %w", errCtx, err))
	}

	slog.Debug(
		"committed entry",
		"project", s.repo,
		"path", fp,
		"bytes", len(content),
	)

	return nil
}
