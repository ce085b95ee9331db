// Package report renders check results for the command line, as
// (optionally coloured) text lines or as JSON documents.
package report
