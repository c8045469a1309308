// Package static serves built files from the bundler's output directory.
//
// This package is internal to bundleserve. It resolves a slash-separated path
// under the output directory to a file and streams it with
// [http.ServeContent], which sets Content-Type, Last-Modified and handles
// conditional and range requests.
//
// Missing files, directories and dot-files are all reported as [ErrNotFound]
// without writing anything, so the caller decides what a miss looks like.
package static
