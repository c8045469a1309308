// Package watch reports bursts of file system changes under a set of
// source directories.
//
// A [Watcher] watches each root recursively, including directories created
// after it starts. Paths matching an ignore pattern are skipped. Events are
// debounced: the change callback runs once per quiet period with every path
// touched during the burst.
package watch
