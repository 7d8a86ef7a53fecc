// Package security validates untrusted input before it reaches the
// model or the filesystem: chat messages are screened for prompt
// injection, and file paths produced by generation are confined to
// their workspace root.
package security
