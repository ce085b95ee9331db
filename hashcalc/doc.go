// Package hashcalc turns an ordered list of inputs into one combined
// hash: the concatenation of each input's digest, in the order given.
//
// Computer is the strategy interface. Store resolves inputs through a
// store.Backend (files, in-memory entries, ...); Literal treats each
// identifier as its own content. ComputerFunc adapts a plain function.
//
// Only content is hashed. Renaming an input without changing its bytes
// does not change the combined hash.
package hashcalc
