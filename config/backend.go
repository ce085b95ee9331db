package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/byte4ever/hashit/store"
	"github.com/byte4ever/hashit/store/filestore"
	"github.com/byte4ever/hashit/store/ghstore"
	"github.com/byte4ever/hashit/store/glstore"
	"github.com/byte4ever/hashit/store/indexstore"
	"github.com/byte4ever/hashit/store/kubestore"
	"github.com/byte4ever/hashit/store/memstore"
)

// Token environment variables.
const (
	EnvGitHubToken = "GITHUB_TOKEN"
	EnvGitLabToken = "GITLAB_TOKEN"
)

// KubeClientFunc builds a Kubernetes client from a
// kubeconfig path.
type KubeClientFunc func(kubeconfig string) (kubernetes.Interface, error)

// NewKubeClient builds a client from kubeconfig. An empty
// path means in-cluster configuration when running in a
// pod, ~/.kube/config otherwise.
func NewKubeClient(kubeconfig string) (kubernetes.Interface, error) {
	const errCtx = "creating kubernetes client"

	if kubeconfig == "" {
		if _, ok := os.LookupEnv(
			"KUBERNETES_SERVICE_HOST",
		); !ok {
			kubeconfig = filepath.Join(
				homedir.HomeDir(),
				".kube", "config",
			)
		}
	}

	restConfig, err := clientcmd.BuildConfigFromFlags(
		"", kubeconfig,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: building kubeconfig: %w",
			errCtx, err,
		)
	}

	cs, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return cs, nil
}

// OpenBackend builds the configured backend.
func (c Config) OpenBackend() (store.Backend, error) {
	return c.OpenBackendWith(NewKubeClient)
}

// OpenBackendWith is OpenBackend with a custom Kubernetes
// client factory. Pattern: Factory -- selects the storage
// implementation at runtime.
func (c Config) OpenBackendWith(
	newKube KubeClientFunc,
) (store.Backend, error) {
	const errCtx = "opening backend"

	be := c.Backend

	if err := be.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", errCtx, ErrInvalid, err)
	}

	slog.Debug("opening backend", "type", be.Type)

	switch be.Type {
	case BackendFile:
		return filestore.New(be.Root), nil
	case BackendMemory:
		return memstore.New(), nil
	case BackendIndex:
		idx := be.Index
		if idx == "" {
			idx = filepath.Join(be.Root, DefaultIndex)
		}

		return indexstore.New(idx), nil
	case BackendKube:
		cl, err := newKube(be.Kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		st, err := kubestore.New(kubestore.Config{
			Client:    cl,
			Namespace: be.Namespace,
			Name:      be.ConfigMap,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return st, nil
	case BackendGitHub:
		st, err := ghstore.New(ghstore.Config{
			RepoOwner:      be.GitHubRepoOwner,
			Repo:           be.GitHubRepo,
			Branch:         be.Branch,
			Prefix:         be.Prefix,
			AccessToken:    be.token(EnvGitHubToken),
			EnterpriseHost: be.GitHubEnterpriseHost,
			BaseURL:        be.GitHubBaseURL,
			CommitMessage:  be.CommitMessage,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return st, nil
	case BackendGitLab:
		st, err := glstore.New(glstore.Config{
			Host:          be.GitLabHost,
			Repo:          be.GitLabRepo,
			Branch:        be.Branch,
			Prefix:        be.Prefix,
			AccessToken:   be.token(EnvGitLabToken),
			CommitMessage: be.CommitMessage,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		return st, nil
	}

	return nil, fmt.Errorf("%s: unknown backend type %q", errCtx, be.Type)
}

// UsesFiles reports whether keys are filesystem paths, so
// a lock file can sit next to the entry.
func (c Config) UsesFiles() bool {
	return c.Backend.Type == BackendFile
}

func (b Backend) token(fallback string) string {
	env := b.TokenEnv
	if env == "" {
		env = fallback
	}

	return os.Getenv(env)
}
