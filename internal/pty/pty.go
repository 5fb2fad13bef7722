package pty

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	creack "github.com/creack/pty"

	verrors "github.com/vaultik/vaultik/internal/errors"
	"github.com/vaultik/vaultik/internal/logging"
	"github.com/vaultik/vaultik/internal/utils"
)

const (
	// DefaultTimeout bounds one interactive run. Touch confirmation has no
	// inherent bound, so a hung run must not hang the caller.
	DefaultTimeout = 60 * time.Second

	// scanInterval is how often the unscanned output region is matched
	// against the prompt table.
	scanInterval = 50 * time.Millisecond

	// idleWindow is how long an unterminated prompt-looking line may sit
	// unmatched before the run fails as unrecognized.
	idleWindow = 2 * time.Second

	// secretInjectDelay gives the child time to enter its read loop between
	// printing a prompt and our write.
	secretInjectDelay = 200 * time.Millisecond

	// diagnosticTailBytes caps raw output carried inside error values.
	diagnosticTailBytes = 512
)

// SecretProvider supplies PIN or passphrase text on demand. The value is
// written to the child once per matched prompt and never logged or retained
// in diagnostics.
type SecretProvider func() (string, error)

// Options configures one interactive run.
type Options struct {
	Command string
	Args    []string

	// Secret answers PIN prompts. Nil means a PIN prompt is a failure.
	Secret SecretProvider

	// OnTouch is invoked when a touch prompt is detected, for UI feedback.
	// The run keeps reading; the device itself blocks until touched.
	OnTouch func()

	// ConfirmResponse answers overwrite-confirmation prompts. Empty declines
	// by sending nothing, which leaves the child to its default.
	ConfirmResponse string

	// Timeout bounds the whole run. Zero means DefaultTimeout.
	Timeout time.Duration

	// Prompts overrides the signature table. Nil means DefaultPrompts.
	Prompts []Prompt
}

// Result is the outcome of a completed run. Output is the full transcript
// with every provided secret redacted.
type Result struct {
	Output   string
	ExitCode int
}

// runState is the shared buffer between the reader goroutine and the scan
// loop. pending holds ANSI-stripped text so signature offsets stay valid when
// a matched region is cleared; output keeps the raw transcript.
type runState struct {
	mu       sync.Mutex
	pending  string // stripped, unscanned; cleared as prompts are consumed
	output   string // full raw transcript
	inEscape bool   // stripper state carried across chunks
	lastRead time.Time
	eof      bool
}

func (st *runState) append(chunk string) {
	st.mu.Lock()
	st.output += chunk
	st.pending += st.stripStream(chunk)
	st.lastRead = time.Now()
	st.mu.Unlock()
}

// stripStream removes ANSI escape sequences, carrying state so a sequence
// split across read chunks is still dropped. Caller holds st.mu.
func (st *runState) stripStream(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case st.inEscape:
			if c >= 0x40 && c <= 0x7E && c != '[' {
				st.inEscape = false
			}
		case c == 0x1b:
			st.inEscape = true
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Run executes command under a pseudo-terminal, answering interactive prompts
// from the signature table. It returns ErrTimedOut when the deadline passes,
// ErrCancelled when ctx is cancelled, and ErrUnrecognizedPrompt when the child
// sits on a prompt no signature matches; in all three cases the child process
// is killed before returning, never orphaned.
func Run(ctx context.Context, opts Options) (*Result, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	prompts := opts.Prompts
	if prompts == nil {
		prompts = DefaultPrompts
	}

	log := logging.Op("pty_run").WithField("command", opts.Command)
	start := time.Now()

	cmd := exec.Command(opts.Command, opts.Args...)
	master, err := creack.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s under a pty: %w", opts.Command, err)
	}
	defer master.Close()

	st := &runState{lastRead: time.Now()}
	var secrets []string // for redaction

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := master.Read(buf)
			if n > 0 {
				st.append(string(buf[:n]))
			}
			if err != nil {
				st.mu.Lock()
				st.eof = true
				st.mu.Unlock()
				return
			}
		}
	}()

	exitCh := make(chan error, 1)
	go func() { exitCh <- cmd.Wait() }()

	kill := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-exitCh // reap; never leave an orphan
	}

	redacted := func(s string) string {
		for _, secret := range secrets {
			s = logging.RedactSecret(s, secret)
		}
		return s
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	var errorLine string
	exited := false
	var exitErr error

	for !exited {
		select {
		case <-ctx.Done():
			kill()
			log.WithField("duration_ms", time.Since(start).Milliseconds()).Warn("run cancelled")
			return nil, verrors.ErrCancelled

		case <-deadline.C:
			kill()
			log.WithField("duration_ms", time.Since(start).Milliseconds()).Warn("run timed out")
			return nil, fmt.Errorf("%w after %s", verrors.ErrTimedOut, timeout)

		case exitErr = <-exitCh:
			exited = true

		case <-ticker.C:
			st.mu.Lock()
			pending := st.pending
			idle := time.Since(st.lastRead)
			st.mu.Unlock()

			p, end, ok := match(prompts, pending)
			if !ok {
				// Nothing recognized. Keep waiting up to the overall timeout,
				// unless the tail looks like a prompt we don't know.
				if idle > idleWindow && looksLikePrompt(pending) {
					kill()
					tail := utils.TruncateForDiagnostics(redacted(pending), diagnosticTailBytes)
					log.WithField("tail", tail).Warn("unrecognized prompt")
					return nil, fmt.Errorf("%w: %q", verrors.ErrUnrecognizedPrompt, tail)
				}
				continue
			}

			switch p.Kind {
			case PromptPIN:
				if opts.Secret == nil {
					kill()
					return nil, fmt.Errorf("%s asked for a PIN but no secret provider was configured", opts.Command)
				}
				secret, err := opts.Secret()
				if err != nil {
					kill()
					return nil, fmt.Errorf("secret provider failed: %w", err)
				}
				secrets = append(secrets, secret)
				time.Sleep(secretInjectDelay)
				if _, err := master.Write([]byte(secret + "\n")); err != nil {
					kill()
					return nil, fmt.Errorf("failed to write secret to pty: %w", err)
				}
				// Clearing the consumed region guarantees at most one write
				// per prompt occurrence.
				st.consume(end)

			case PromptTouch:
				if opts.OnTouch != nil {
					opts.OnTouch()
				}
				st.consume(end)

			case PromptConfirm:
				if opts.ConfirmResponse != "" {
					if _, err := master.Write([]byte(opts.ConfirmResponse + "\n")); err != nil {
						kill()
						return nil, fmt.Errorf("failed to write confirmation to pty: %w", err)
					}
				}
				st.consume(end)

			case PromptError:
				if errorLine == "" {
					errorLine = lineContaining(pending, p.Pattern)
				}
				st.consume(end)
			}
		}
	}

	// Give the reader a moment to drain buffered output after exit.
	drainDeadline := time.Now().Add(250 * time.Millisecond)
	for {
		st.mu.Lock()
		done := st.eof
		st.mu.Unlock()
		if done || time.Now().After(drainDeadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	st.mu.Lock()
	output := redacted(st.output)
	st.mu.Unlock()

	result := &Result{Output: output, ExitCode: exitCode(exitErr)}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("exit_code", result.ExitCode).
		Info("run finished")

	if exitErr != nil {
		if errorLine != "" {
			return result, fmt.Errorf("%s failed: %s", opts.Command, redacted(errorLine))
		}
		tail := utils.TruncateForDiagnostics(output, diagnosticTailBytes)
		return result, fmt.Errorf("%s exited with code %d: %s", opts.Command, result.ExitCode, tail)
	}
	return result, nil
}

// consume drops the first n bytes of the pending region: the matched prompt
// is gone, so it can only be answered once per occurrence.
func (st *runState) consume(n int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if n >= len(st.pending) {
		st.pending = ""
		return
	}
	st.pending = st.pending[n:]
}

// lineContaining returns the line of buf that holds pattern.
func lineContaining(buf, pattern string) string {
	for _, line := range strings.Split(buf, "\n") {
		if strings.Contains(line, pattern) {
			return strings.TrimSpace(line)
		}
	}
	return pattern
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
