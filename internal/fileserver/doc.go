// Package fileserver turns the first bytes read from a connection into a
// response built from files below a document root.
//
// Only the request line is interpreted. GET and HEAD are served; any other
// method gets 405 without the filesystem being consulted. The target is
// percent-decoded before it is joined to the root, and the joined path is
// canonicalized (symlinks resolved, dot segments collapsed) before it is
// compared against the canonical root, so encoded or symlinked traversal
// cannot escape it. Directories are served through their index.html, or 403
// when there is none.
//
// Error pages for 400, 403, 404, 405 and 500 are embedded in the binary.
package fileserver
