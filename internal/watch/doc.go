// Package watch reports batches of changed files using fsnotify.
//
// Directories are watched recursively, new subdirectories included.
// Events are debounced so an editor's save burst arrives as one batch.
package watch
