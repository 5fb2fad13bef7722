// Package pty drives external command-line tools through a pseudo-terminal.
//
// Hardware-backed age plugins and ykman only prompt for PINs and touch
// confirmation when attached to a real terminal, so the package allocates a
// pty, scans the child's output for known prompt signatures, and answers
// them: a PIN is written once per prompt occurrence, touch requests surface
// a notification callback, and confirmation prompts receive a canned reply.
// Output returned to callers has every injected secret redacted.
package pty
