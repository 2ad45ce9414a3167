// Package saver ties extraction and delivery together: it opens a page,
// extracts its content, skips destinations that already hold it and
// delivers to the rest.
package saver
