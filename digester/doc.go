// Package digester computes fixed-length content digests. An Algorithm names
// one hash function (BLAKE2b-512 by default, SHA-256, SHA-512 or BLAKE3-256)
// and digests byte slices or streams in a single pass. Split cuts a combined
// hash back into its per-input digests.
package digester
