// Package app runs one report: it authenticates with Umami, fetches every
// configured website, renders the digest and hands it to a notifier.
//
// NewContainer builds the dependency graph from a config.Config so the CLI
// only has to invoke the Reporter.
package app
