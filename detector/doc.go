// Package detector answers "have these inputs changed since the last
// call with this key?".
//
// HasChanged hashes the inputs, fetches the combined hash cached under
// the output key (creating an empty entry on first use), compares the
// two byte for byte and, only when they differ, truncates the entry and
// writes the new hash. The detector holds no state of its own; every
// durable byte lives in the injected store.Backend.
//
// Check and Record split the same protocol in two for callers that must
// act on a change before committing it.
package detector
