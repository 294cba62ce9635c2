// Package config loads the server configuration from a line-oriented
// "key value" file and HTTPD_* environment variables. It defines the
// thread-pool size, the document root, listening addresses and logging
// options, and validates them before the server starts.
package config
