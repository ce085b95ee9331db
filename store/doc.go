// Package store defines the storage capability that change detection reads
// and writes through. A Backend addresses cache entries by opaque string keys
// and offers existence checks, read handles, append or truncate write
// handles, and idempotent entry creation.
//
// Concrete backends live in sub-packages: filestore (local filesystem),
// memstore (in-memory, caller owned), indexstore (one msgpack file holding
// every key), kubestore (a Kubernetes ConfigMap), ghstore (files in a GitHub
// repository) and glstore (files in a GitLab project).
//
// Failures carry a kind sentinel (ErrNotFound, ErrIO, ErrMissingDir,
// ErrNotImplemented) that callers match with errors.Is.
package store
