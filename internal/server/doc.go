// Package server hosts the Fiber HTTP service, the request middleware chain,
// and the source registry that merges per-source defaults with config
// overrides. Routes live in the routes subpackage and are attached through
// AppOptions.Routes so the JSON not-found handler always runs last.
package server
