// Package codegen is the generation core: it keeps one bounded
// conversation memory per app, routes each request to a single-file,
// multi-file or tool-driven project strategy, injects previously
// generated code into edit requests, streams model output while
// accumulating it for persistence, and caches assembled clients per
// (app, type) with write-time and idle-time expiry.
package codegen
