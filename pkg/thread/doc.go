// Package thread walks a lazily rendered timeline and collects the
// consecutive items written by one author.
//
// The live view is reached only through two interfaces: ItemLocator reads
// the currently rendered items and ScrollDriver moves the viewport. The
// browser package implements both against a Chrome tab, the snapshot package
// against a saved HTML page.
//
// A walk ends for one of these reasons:
//
//	author_changed       the next item belongs to someone else (normal end)
//	no_more_items        no successor appeared after scrolling further
//	lost_anchor          the current item dropped out of the rendered list
//	author_unresolvable  the successor's author never resolved
//	max_items            the configured item cap was reached
//	cancelled            the context ended
//
// Every reason except a cancelled context returns the items collected so far.
// The walker assumes nothing else scrolls or edits the view while it runs;
// concurrent mutation is not detected.
package thread
