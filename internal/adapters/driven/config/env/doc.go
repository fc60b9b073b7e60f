// Package env overlays process environment variables onto settings.
//
// Variables are read with github.com/kelseyhightower/envconfig. Before
// reading, .env files are loaded into the process environment without
// overriding variables that are already set.
package env
