// Package storage exports content as markdown files.
//
// Each URL maps to one file named <author>-<hash>.md, where hash is derived
// from the URL, so saving the same thread again replaces the earlier export.
// Files start with YAML front matter (title, url, author, type, stats) followed
// by the items separated by horizontal rules. Writes go through a temporary
// file and a rename so readers never see a partial file.
//
// Usage:
//
//	manager, err := storage.NewManager("notes/inbox")
//	if err != nil {
//	    return err
//	}
//	receipt, err := manager.Deliver(ctx, content)
package storage
