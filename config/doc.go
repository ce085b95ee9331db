// Package config holds hashit settings: the digest algorithm, the key
// template, output options and the backend that stores entries.
//
// Settings start from Default, are overlaid by an optional file and
// finally by command-line flags. The file format follows the extension:
// .yaml/.yml, .toml or .ini. Access tokens for remote backends are read
// from the environment, never from the file.
package config
