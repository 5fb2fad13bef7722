package cmd

import (
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/vaultik/vaultik/internal/configs"
	"github.com/vaultik/vaultik/internal/crypto"
	"github.com/vaultik/vaultik/internal/logging"
	"github.com/vaultik/vaultik/internal/pty"
	"github.com/vaultik/vaultik/internal/registry"
	"github.com/vaultik/vaultik/internal/ui"
	"github.com/vaultik/vaultik/internal/utils"
	"github.com/vaultik/vaultik/internal/vaults"
	"github.com/vaultik/vaultik/internal/yubikey"
)

// env bundles the services every command needs: resolved settings, the key
// registry, the vault store and the crypto engine, constructed once per
// invocation.
type env struct {
	settings    *configs.UserSettings
	config      *configs.UserConfig
	registry    *registry.Registry
	vaults      *vaults.Store
	querier     *yubikey.Querier
	provisioner *yubikey.Provisioner
	engine      *crypto.Engine
}

func newEnv() (*env, error) {
	settings := configs.UserVaultikSettings
	if err := settings.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create state directories: %w", err)
	}
	if err := logging.Init(settings.LogsPath, debug); err != nil {
		return nil, err
	}

	config, err := configs.EnsureUserConfig(settings)
	if err != nil {
		return nil, err
	}

	ageBin := config.Bins.Age
	if ageBin == "" {
		ageBin = "age"
	}
	pluginBin := config.Bins.AgePlugin
	if pluginBin == "" {
		pluginBin = "age-plugin-yubikey"
	}
	ykmanBin := config.Bins.Ykman
	if ykmanBin == "" {
		ykmanBin = "ykman"
	}

	timeout := pty.DefaultTimeout
	if config.Pty.TimeoutSeconds > 0 {
		timeout = time.Duration(config.Pty.TimeoutSeconds) * time.Second
	}

	reg := registry.Open(settings.RegistryPath)
	querier := yubikey.NewQuerier(pluginBin, ykmanBin)

	return &env{
		settings:    settings,
		config:      config,
		registry:    reg,
		vaults:      vaults.NewStore(settings.VaultsPath),
		querier:     querier,
		provisioner: &yubikey.Provisioner{PluginBin: pluginBin, Timeout: timeout},
		engine:      crypto.NewEngine(reg, settings.KeysPath, querier, ageBin, timeout),
	}, nil
}

// currentVault resolves the selected vault, with a uniform message when
// none is selected yet.
func (e *env) currentVault() (*vaults.Vault, error) {
	vaultID, err := e.vaults.Current()
	if err != nil {
		return nil, err
	}
	return e.vaults.Get(vaultID)
}

// startSpinner creates and starts a spinner with the given message when not in
// verbose or debug mode. Returns the spinner and a function that should be
// deferred to clean up.
//
// spinner.FinalMSG values do NOT need trailing newlines; the cleanup function
// calls ui.EnsureNewline() on the final message before printing it.
func startSpinner(message string, verbose bool) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	if err := s.Color("cyan"); err != nil {
		// If we can't set spinner color, just continue without it.
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	if !verbose && !debug {
		s.Start()
		// Ensure log output is discarded unless in verbose mode.
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		if !verbose && !debug {
			log.SetOutput(os.Stdout)
		}

		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		if !verbose && !debug {
			s.Stop()
		}

		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// passphraseProvider prompts on the controlling terminal, caching the answer
// so a vault with several passphrase keys asks at most once per run.
func passphraseProvider(prompt string) pty.SecretProvider {
	var once sync.Once
	var secret string
	var readErr error
	return func() (string, error) {
		once.Do(func() {
			b, err := utils.ReadPassphraseFromTTY(prompt)
			if err != nil {
				readErr = err
				return
			}
			secret = string(b)
		})
		return secret, readErr
	}
}

// pinProvider prompts for the device PIN on demand, cached the same way.
func pinProvider() pty.SecretProvider {
	return passphraseProvider("Enter YubiKey PIN: ")
}

// confirmedPassphrase prompts twice and requires both entries to match.
func confirmedPassphrase() (string, error) {
	first, err := utils.ReadPassphraseFromTTY("Enter new passphrase: ")
	if err != nil {
		return "", err
	}
	second, err := utils.ReadPassphraseFromTTY("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return string(first), nil
}

// recovery codes use an unambiguous alphabet (no 0/O, 1/I/L) so they survive
// being read back over the phone or from paper.
const recoveryAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

func generateRecoveryCode() (string, error) {
	raw := make([]byte, 12)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate recovery code: %w", err)
	}
	code := make([]byte, 0, 14)
	for i, b := range raw {
		if i > 0 && i%4 == 0 {
			code = append(code, '-')
		}
		code = append(code, recoveryAlphabet[int(b)%len(recoveryAlphabet)])
	}
	return string(code), nil
}

func touchNotifier() func() {
	return func() {
		fmt.Fprintln(os.Stderr, ui.Info.Sprint("→")+" Touch your YubiKey to continue...")
	}
}
