// Package keytmpl derives an output key from the inputs of a check.
//
// Templates use single-brace placeholders: {first}, {dir}, {base},
// {count} and {algorithm}, plus any variable read from "KEY VALUE"
// variable files. Unknown placeholders are kept as written. The default
// template, {first}.digest, places the entry next to the first input.
package keytmpl
