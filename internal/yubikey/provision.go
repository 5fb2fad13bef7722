package yubikey

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vaultik/vaultik/internal/logging"
	"github.com/vaultik/vaultik/internal/pty"
)

// Provisioner performs the interactive device operations: generating an
// identity in a slot requires the PIN and usually a touch, so these run
// through the pseudo-terminal layer rather than plain exec.
type Provisioner struct {
	PluginBin string
	Timeout   time.Duration
}

// GenerateOptions configures identity generation on one device.
type GenerateOptions struct {
	Serial string
	// Slot is the retired slot index to generate into.
	Slot uint8
	// Name labels the identity on the device.
	Name string
	// TouchPolicy is always, cached or never. Empty means the plugin
	// default (always).
	TouchPolicy string
	// PIN supplies the device PIN when prompted.
	PIN pty.SecretProvider
	// OnTouch fires when the device is waiting for a physical touch.
	OnTouch func()
}

// Generated reports the outcome of an identity generation.
type Generated struct {
	Recipient   string
	IdentityTag string
}

// Generate creates a fresh age identity in the device slot. The serial is
// always passed through to the plugin so a second attached device can
// never be provisioned by accident. Callers must have classified the slot
// as new first; the plugin would otherwise prompt to overwrite.
func (p *Provisioner) Generate(ctx context.Context, opts GenerateOptions) (*Generated, error) {
	args := []string{
		"--generate",
		"--serial", opts.Serial,
		"--slot", strconv.Itoa(int(opts.Slot)),
		"--name", opts.Name,
	}
	if opts.TouchPolicy != "" {
		args = append(args, "--touch-policy", opts.TouchPolicy)
	}

	logging.Op("provision").
		WithField("device", logging.Fingerprint(opts.Serial)).
		WithField("slot", opts.Slot).
		Info("generating device identity")

	result, err := pty.Run(ctx, pty.Options{
		Command: p.PluginBin,
		Args:    args,
		Secret:  opts.PIN,
		OnTouch: opts.OnTouch,
		// Generation prompts to overwrite when the slot is unexpectedly
		// occupied; refuse rather than destroy an identity.
		ConfirmResponse: "n",
		Timeout:         p.Timeout,
	})
	if err != nil {
		return nil, err
	}

	recipient, err := extractRecipient(result.Output)
	if err != nil {
		return nil, err
	}
	return &Generated{Recipient: recipient, IdentityTag: opts.Name}, nil
}

// extractRecipient pulls the generated recipient out of the plugin
// transcript. Newer plugin versions print the bare recipient line, older
// ones prefix it with "Recipient:".
func extractRecipient(output string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "age1yubikey1") {
			return strings.Fields(trimmed)[0], nil
		}
	}
	for _, line := range strings.Split(output, "\n") {
		if idx := strings.Index(line, "Recipient:"); idx >= 0 {
			candidate := strings.TrimSpace(line[idx+len("Recipient:"):])
			if strings.HasPrefix(candidate, "age1yubikey1") {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("no age recipient found in plugin output")
}
