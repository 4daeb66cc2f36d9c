package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"valhalla-hq/heimdall/pkg/cli"
	"valhalla-hq/heimdall/pkg/config"
	"valhalla-hq/heimdall/pkg/security/secrets"
)

// apiKeyPrefix marks generated admin keys so they are easy to spot in logs
// and secret scanners.
const apiKeyPrefix = "hk_"

var keysFlags struct {
	name      string
	userID    string
	secretDir string
	force     bool
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage admin API keys",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an admin API key",
	Long: `Generate a random admin API key and print the configuration snippet
that enables it.

With --secrets-dir the key is written to <dir>/<name> with mode 0600 and the
snippet references it through key_secret, so the key never appears in the
configuration file. Without it the key is printed once on stdout; export it
as HEIMDALL_SECRET_<NAME> to keep it out of the file.

Examples:
  heimdall keys generate --name ops-key --user ops
  heimdall keys generate --name ops-key --user ops --secrets-dir /var/run/secrets/heimdall`,
	Args: cobra.NoArgs,
	RunE: generateKey,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd)

	keysGenerateCmd.Flags().StringVar(&keysFlags.name, "name", "", "secret name referenced by key_secret")
	keysGenerateCmd.Flags().StringVar(&keysFlags.userID, "user", "", "operator recorded as changed_by (required)")
	keysGenerateCmd.Flags().StringVar(&keysFlags.secretDir, "secrets-dir", "", "write the key to this secrets directory")
	keysGenerateCmd.Flags().BoolVar(&keysFlags.force, "force", false, "overwrite an existing secret file")
}

func generateKey(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(keysFlags.userID) == "" {
		return cli.Exit(cli.ExitFailure, errors.New("--user is required"))
	}
	name := keysFlags.name
	if name == "" {
		name = keysFlags.userID + "-key"
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return cli.Exit(cli.ExitFailure, fmt.Errorf("invalid secret name %q", name))
	}

	key, err := newAPIKey()
	if err != nil {
		return cli.NewCommandError("keys generate", err)
	}

	out := cmd.OutOrStdout()
	if keysFlags.secretDir != "" {
		path, err := writeSecretFile(keysFlags.secretDir, name, key, keysFlags.force)
		if err != nil {
			return cli.NewCommandError("keys generate", err)
		}
		fmt.Fprintf(out, "✓ Key written to %s\n\n", path)
		fmt.Fprintln(out, "Configuration snippet:")
		fmt.Fprintln(out, "security:")
		fmt.Fprintln(out, "  secrets:")
		fmt.Fprintf(out, "    dir: %q\n", keysFlags.secretDir)
	} else {
		fmt.Fprintf(out, "Key: %s\n\n", key)
		fmt.Fprintln(out, "⚠️  The key is shown once. Store it in your secret manager and export it as")
		fmt.Fprintf(out, "   %s\n\n", secrets.NewEnvProvider(config.DefaultSecretEnvPrefix).VarName(name))
		fmt.Fprintln(out, "Configuration snippet:")
		fmt.Fprintln(out, "security:")
	}
	fmt.Fprintln(out, "  authentication:")
	fmt.Fprintln(out, "    enabled: true")
	fmt.Fprintln(out, "    keys:")
	fmt.Fprintf(out, "      - key_secret: %q\n", name)
	fmt.Fprintf(out, "        user_id: %q\n", keysFlags.userID)
	fmt.Fprintln(out, "        enabled: true")
	return nil
}

// newAPIKey returns apiKeyPrefix followed by 32 random bytes in hex.
func newAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

func writeSecretFile(dir, name, key string, force bool) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create secrets directory: %w", err)
	}
	path := filepath.Join(dir, name)

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("%s already exists, pass --force to replace it", path)
	}
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(key + "\n"); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	// O_TRUNC keeps the old mode.
	return path, os.Chmod(path, 0o600)
}
