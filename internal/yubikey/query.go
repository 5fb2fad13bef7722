package yubikey

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/vaultik/vaultik/internal/logging"
)

// Querier reads device facts through the vendor command-line tools. Listing
// and identity export are non-interactive, so plain exec is enough; nothing
// here prompts for a PIN.
type Querier struct {
	// PluginBin is the age-plugin-yubikey executable.
	PluginBin string
	// YkmanBin is the ykman executable.
	YkmanBin string
}

// NewQuerier builds a Querier from resolved binary paths.
func NewQuerier(pluginBin, ykmanBin string) *Querier {
	return &Querier{PluginBin: pluginBin, YkmanBin: ykmanBin}
}

// ListDevices enumerates every age identity slot on every attached device.
// A machine with no devices attached returns an empty slice, not an error;
// only a failure to run the plugin at all is reported.
func (q *Querier) ListDevices(ctx context.Context) ([]DeviceView, error) {
	out, err := q.runPlugin(ctx, "--list-all")
	if err != nil {
		// Older plugin versions only know --list.
		out, err = q.runPlugin(ctx, "--list")
		if err != nil {
			return nil, fmt.Errorf("failed to list device identities: %w", err)
		}
	}

	views := parseListOutput(out)
	for i := range views {
		q.fillPinState(ctx, &views[i])
	}
	return views, nil
}

// View snapshots one device slot. A nil view means the device itself is
// not reachable and feeds straight into Classify as Unreachable. An
// attached device whose slot holds no identity yields an identity-less
// view with real PIN state, so a locked device never classifies as New.
func (q *Querier) View(ctx context.Context, serial string, slot uint8) (*DeviceView, error) {
	views, err := q.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	for i := range views {
		if views[i].Serial == serial && views[i].Slot == slot {
			return &views[i], nil
		}
	}

	// No identity in the slot. The device may still be attached, and its
	// PIN state still gates provisioning.
	view := &DeviceView{Serial: serial, Slot: slot}
	if !q.fillPinState(ctx, view) {
		return nil, nil
	}
	return view, nil
}

// IdentityStub exports the identity file contents for a serial. The stub
// references the hardware; it contains no private key material and is safe
// to write to disk.
func (q *Querier) IdentityStub(ctx context.Context, serial string) (string, error) {
	out, err := q.runPlugin(ctx, "--identity", "--serial", serial)
	if err != nil {
		return "", fmt.Errorf("failed to export identity for %s: %w", logging.Fingerprint(serial), err)
	}
	if !strings.Contains(out, "AGE-PLUGIN-YUBIKEY-") {
		return "", fmt.Errorf("no identity found for %s", logging.Fingerprint(serial))
	}
	return out, nil
}

// ConnectedSerial reports the serial of the attached device, empty when
// none is connected.
func (q *Querier) ConnectedSerial(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, q.YkmanBin, "info").CombinedOutput()
	if err != nil {
		return "", nil
	}
	for _, line := range strings.Split(string(out), "\n") {
		if rest, found := strings.CutPrefix(strings.TrimSpace(line), "Serial number:"); found {
			return strings.TrimSpace(rest), nil
		}
		if rest, found := strings.CutPrefix(strings.TrimSpace(line), "Serial:"); found {
			return strings.TrimSpace(rest), nil
		}
	}
	return "", nil
}

func (q *Querier) runPlugin(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, q.PluginBin, args...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// fillPinState augments a view with the PIN retry counter from ykman and
// reports whether the device answered at all. A failed query leaves the
// view usable with retries unknown.
func (q *Querier) fillPinState(ctx context.Context, view *DeviceView) bool {
	// -1 means unknown, distinct from a parsed zero which means blocked.
	view.PinRetries = -1
	out, err := exec.CommandContext(ctx, q.YkmanBin, "--device", view.Serial, "piv", "info").CombinedOutput()
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(out), "\n") {
		trimmed := strings.TrimSpace(line)
		if rest, found := strings.CutPrefix(trimmed, "PIN tries remaining:"); found {
			// Formats seen in the wild: "3/3" and bare "3".
			field := strings.TrimSpace(rest)
			if idx := strings.IndexByte(field, '/'); idx >= 0 {
				field = field[:idx]
			}
			if n, err := strconv.Atoi(field); err == nil {
				view.PinRetries = n
				if n == 0 {
					view.PinStatus = PinBlocked
				}
			}
		}
		if rest, found := strings.CutPrefix(trimmed, "PIV version:"); found {
			view.FirmwareVersion = strings.TrimSpace(rest)
		}
	}
	return true
}

// parseListOutput decodes the comment-header blocks the plugin prints:
//
//	#       Serial: 20565172, Slot: 1
//	#         Name: backup key
//	age1yubikey1q...
func parseListOutput(out string) []DeviceView {
	var views []DeviceView
	var current DeviceView

	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if rest, found := strings.CutPrefix(trimmed, "#"); found {
			rest = strings.TrimSpace(rest)
			if v, ok := headerField(rest, "Serial:"); ok {
				current.Serial = strings.TrimSuffix(v, ",")
				if idx := strings.Index(v, "Slot:"); idx >= 0 {
					current.Serial = strings.TrimSpace(strings.TrimSuffix(v[:idx], ", "))
					current.Serial = strings.TrimSuffix(current.Serial, ",")
					if n, err := strconv.Atoi(strings.TrimSpace(v[idx+len("Slot:"):])); err == nil {
						current.Slot = uint8(n)
					}
				}
			} else if v, ok := headerField(rest, "Slot:"); ok {
				if n, err := strconv.Atoi(v); err == nil {
					current.Slot = uint8(n)
				}
			} else if v, ok := headerField(rest, "Name:"); ok {
				current.IdentityTag = v
			}
			continue
		}
		if strings.HasPrefix(trimmed, "age1yubikey1") {
			current.Recipient = strings.Fields(trimmed)[0]
			views = append(views, current)
			current = DeviceView{}
		}
	}
	return views
}

func headerField(line, key string) (string, bool) {
	rest, found := strings.CutPrefix(line, key)
	if !found {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
