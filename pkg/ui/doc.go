// Package ui provides terminal output helpers, desktop notifications and a
// progress tracker for batch saves.
package ui
