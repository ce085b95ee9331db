// Package kubestore is a store.Backend that keeps entries as
// binaryData items of one Kubernetes ConfigMap, so change state
// can live next to the workloads it gates.
package kubestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/util/retry"

	"github.com/byte4ever/hashit/store"
)

const (
	// maxEntryName leaves room for the collision suffix
	// under the 253 character ConfigMap key limit.
	maxEntryName = 200
	suffixBytes  = 4
)

// ManagedByLabel marks ConfigMaps created by this package.
const ManagedByLabel = "app.kubernetes.io/managed-by"

// Config holds the settings needed to create a Store.
type Config struct {
	// Client talks to the API server.
	Client kubernetes.Interface
	// Namespace holds the ConfigMap.
	Namespace string
	// Name is the ConfigMap name.
	Name string
	// Labels are applied when the ConfigMap is created.
	Labels map[string]string
}

// Store reads and writes one ConfigMap.
type Store struct {
	client    kubernetes.Interface
	namespace string
	name      string
	labels    map[string]string
}

var _ store.Backend = (*Store)(nil)

// New validates cfg and returns a Store.
func New(cfg Config) (*Store, error) {
	const errCtx = "creating configmap store"

	if cfg.Client == nil {
		return nil, fmt.Errorf("%s: client must be set", errCtx)
	}

	if cfg.Namespace == "" {
		return nil, fmt.Errorf("%s: namespace must be set", errCtx)
	}

	if cfg.Name == "" {
		return nil, fmt.Errorf("%s: name must be set", errCtx)
	}

	labels := map[string]string{ManagedByLabel: "hashit"}
	for k, v := range cfg.Labels {
		labels[k] = v
	}

	return &Store{
		client:    cfg.Client,
		namespace: cfg.Namespace,
		name:      cfg.Name,
		labels:    labels,
	}, nil
}

// EntryName maps an arbitrary key onto the ConfigMap key
// alphabet [-._a-zA-Z0-9]. Keys that had to be altered get a
// short digest suffix so distinct keys stay distinct. Keys
// that already end like a suffix get one too, so a plain
// name never equals a suffixed one.
func EntryName(key string) string {
	var sb strings.Builder

	altered := false

	for _, ru := range key {
		switch {
		case ru >= 'a' && ru <= 'z',
			ru >= 'A' && ru <= 'Z',
			ru >= '0' && ru <= '9',
			ru == '-', ru == '_', ru == '.':
			sb.WriteRune(ru)
		default:
			sb.WriteByte('_')

			altered = true
		}
	}

	name := strings.TrimLeft(sb.String(), "_")
	if name != sb.String() || name == "" || name == "." || name == ".." {
		altered = true
	}

	if len(name) > maxEntryName {
		name = name[len(name)-maxEntryName:]
		altered = true
	}

	if hasSuffix(name) {
		altered = true
	}

	if !altered {
		return name
	}

	sum := sha256.Sum256([]byte(key))

	return name + "-" + hex.EncodeToString(sum[:suffixBytes])
}

// hasSuffix reports whether name ends with "-" and
// suffixBytes of lowercase hex.
func hasSuffix(name string) bool {
	const width = 2*suffixBytes + 1

	if len(name) < width || name[len(name)-width] != '-' {
		return false
	}

	for _, c := range []byte(name[len(name)-width+1:]) {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}

func (s *Store) get(ctx context.Context) (*v1.ConfigMap, error) {
	return s.client.CoreV1().ConfigMaps(s.namespace).Get(
		ctx, s.name, metav1.GetOptions{},
	)
}

// Exists implements store.Backend.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	cm, err := s.get(ctx)
	if apierrors.IsNotFound(err) {
		return false, nil
	}

	if err != nil {
		return false, store.IOError(key, err)
	}

	_, ok := cm.BinaryData[EntryName(key)]

	return ok, nil
}

// OpenRead implements store.Backend.
func (s *Store) OpenRead(
	ctx context.Context,
	key string,
) (io.ReadCloser, error) {
	by, err := s.read(ctx, key)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(by)), nil
}

func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	cm, err := s.get(ctx)
	if apierrors.IsNotFound(err) {
		return nil, store.NotFound(key, err)
	}

	if err != nil {
		return nil, store.IOError(key, err)
	}

	by, ok := cm.BinaryData[EntryName(key)]
	if !ok {
		return nil, store.NotFound(key, nil)
	}

	return by, nil
}

// OpenWrite implements store.Backend. The ConfigMap is
// updated when the handle is closed.
func (s *Store) OpenWrite(
	ctx context.Context,
	key string,
	mode store.Mode,
) (io.WriteCloser, error) {
	var initial []byte

	if mode == store.Append {
		by, err := s.read(ctx, key)

		switch {
		case err == nil:
			initial = by
		case store.KindOf(err) != store.ErrNotFound:
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
	const errCtx = "updating configmap"

	entry := EntryName(key)
	cms := s.client.CoreV1().ConfigMaps(s.namespace)

	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		cm, err := s.get(ctx)
		if apierrors.IsNotFound(err) {
			_, err = cms.Create(ctx, &v1.ConfigMap{
				ObjectMeta: metav1.ObjectMeta{
					Name:      s.name,
					Namespace: s.namespace,
					Labels:    s.labels,
				},
				BinaryData: map[string][]byte{entry: content},
			}, metav1.CreateOptions{})

			if apierrors.IsAlreadyExists(err) {
				// Lost a creation race; retry as an update.
				return apierrors.NewConflict(
					v1.Resource("configmaps"), s.name, err,
				)
			}

			return err
		}

		if err != nil {
			return err
		}

		if cm.BinaryData == nil {
			cm.BinaryData = make(map[string][]byte)
		}

		cm.BinaryData[entry] = content

		_, err = cms.Update(ctx, cm, metav1.UpdateOptions{})

		return err
	})
	if err != nil {
		return store.IOError(key, fmt.Errorf("%s: %w", errCtx, err))
	}

	slog.Debug(
		"stored entry",
		"configmap", s.namespace+"/"+s.name,
		"entry", entry,
		"bytes", len(content),
	)

	return nil
}
