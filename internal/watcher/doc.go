// Package watcher renders a directory of HTML snapshots as they change.
//
// Each poll lists the *.html files of the directory. A new or modified file
// is loaded and handed to an observer.Observer as a page change; the scan
// that follows becomes a RenderReport. Files whose content hash matches
// the last stored run are skipped when a Store is configured.
package watcher
