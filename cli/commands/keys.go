package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/singlebase/singlebase-go/cli/keystore"
)

func (a *App) newKeysCommand() *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage access keys",
		Long: `Manage Singlebase access keys. Keys are stored in an encrypted file or,
with "keystore: keyring" in the config, in the OS keychain.

Entries are named after profiles. A profile with api_key_ref uses that name
instead.`,
	}

	keysCmd.AddCommand(&cobra.Command{
		Use:   "set [name]",
		Short: "Store the access key for a profile",
		Long:  `Store an access key. The key is prompted without echo, or read from stdin when piped. The name defaults to the active profile.`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runKeysSet,
	})
	keysCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored access keys",
		Long:  `List stored key names. Key values are never shown.`,
		Args:  cobra.NoArgs,
		RunE:  a.runKeysList,
	})
	keysCmd.AddCommand(&cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a stored access key",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runKeysDelete,
	})

	return keysCmd
}

// keyName returns the explicit name or the active profile's key reference.
func (a *App) keyName(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	r, err := a.resolve()
	if err != nil {
		return "", err
	}
	return r.KeyRef, nil
}

func (a *App) openStore() (keystore.Keystore, error) {
	ks, err := a.openKeystore(a.cfg.Keystore)
	if err != nil {
		return nil, exitWithCode(ExitValidation, fmt.Errorf("failed to open keystore: %w", err))
	}
	return ks, nil
}

func (a *App) runKeysSet(cmd *cobra.Command, args []string) error {
	name, err := a.keyName(args)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stderr, "Enter access key for %s: ", name)

	var apiKey string
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		keyBytes, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return exitWithCode(ExitValidation, fmt.Errorf("failed to read key: %w", err))
		}
		apiKey = string(keyBytes)
		fmt.Fprintln(a.stderr) // Newline after hidden input
	} else {
		// Fallback for non-terminal (e.g., piped input)
		line, err := bufio.NewReader(a.stdin).ReadString('\n')
		if err != nil && line == "" {
			return exitWithCode(ExitValidation, fmt.Errorf("failed to read key: %w", err))
		}
		apiKey = line
	}
	apiKey = strings.TrimSpace(apiKey)

	if apiKey == "" {
		return exitWithCode(ExitValidation, fmt.Errorf("access key cannot be empty"))
	}

	ks, err := a.openStore()
	if err != nil {
		return err
	}
	if err := ks.Set(name, apiKey); err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to store key: %w", err))
	}

	fmt.Fprintf(a.stdout, "Access key for %s stored successfully.\n", name)
	return nil
}

func (a *App) runKeysList(cmd *cobra.Command, args []string) error {
	ks, err := a.openStore()
	if err != nil {
		return err
	}

	names, err := ks.List()
	if err != nil {
		return exitWithCode(ExitValidation, fmt.Errorf("failed to list keys: %w", err))
	}

	if a.jsonOutput {
		if names == nil {
			names = []string{}
		}
		return a.writeJSON(map[string]any{"keys": names})
	}

	if len(names) == 0 {
		fmt.Fprintln(a.stdout, "No access keys stored.")
		return nil
	}

	fmt.Fprintln(a.stdout, "Stored keys:")
	for _, name := range names {
		fmt.Fprintf(a.stdout, "  - %s\n", name)
	}
	return nil
}

func (a *App) runKeysDelete(cmd *cobra.Command, args []string) error {
	name, err := a.keyName(args)
	if err != nil {
		return err
	}

	ks, err := a.openStore()
	if err != nil {
		return err
	}

	if err := ks.Delete(name); err != nil {
		if keystore.IsNotFound(err) {
			return exitWithCode(ExitValidation, fmt.Errorf("no key stored for %s", name))
		}
		return exitWithCode(ExitValidation, fmt.Errorf("failed to delete key: %w", err))
	}

	fmt.Fprintf(a.stdout, "Access key for %s deleted.\n", name)
	return nil
}
