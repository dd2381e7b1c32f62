// Package umami is a small client for the Umami analytics HTTP API.
//
// It covers the three calls a report needs: logging in to obtain a bearer
// token, reading aggregate statistics for a website over a time window, and
// looking up a website's name. Self-hosted instances are addressed at
// <base>/api/...; Umami Cloud, which authenticates with an API key, serves
// the same resources from the root of its versioned base URL.
//
// Stats responses differ between Umami releases (flat numbers in v3,
// {"value","prev"} objects in v2, occasionally an array of partial objects),
// so they are read field by field with jsonparser rather than decoded into a
// fixed struct.
package umami
