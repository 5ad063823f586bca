package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/luckygong/streambus/internal/cli/output"
	"github.com/luckygong/streambus/pkg/config"
	"github.com/luckygong/streambus/pkg/identity"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage credential store entries",
	Long: `Manage users in the configured credential store.

Entries carry a bcrypt hash for PLAIN plus stored SCRAM verifiers, so a
provisioned user can authenticate with any enabled shared-secret
mechanism. GSSAPI identities come from the KDC and are not managed here.

These commands open the store directly and require the badger backend.
With the memory backend, provision users through the admin API of a
running broker instead.`,
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add or replace a user (prompts for password)",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userDeleteCmd = &cobra.Command{
	Use:     "delete <username>",
	Aliases: []string{"remove"},
	Short:   "Delete a user",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserDelete,
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all users",
	Args:    cobra.NoArgs,
	RunE:    runUserList,
}

func init() {
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userListCmd)
}

// openAdminStore loads the config and opens the credential store for
// direct administration.
func openAdminStore() (identity.Admin, func() error, *config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Store.Backend != "badger" {
		return nil, nil, nil, fmt.Errorf("user commands require the badger store backend (configured: %s); use the admin API of a running broker instead", cfg.Store.Backend)
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return store, closeStore, cfg, nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username := args[0]

	store, closeStore, cfg, err := openAdminStore()
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	password, err := promptPassword(fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	user, err := identity.NewUser(username, password, cfg.SASL.ScramIterations)
	if err != nil {
		return err
	}
	if err := store.Upsert(context.Background(), user); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}

	fmt.Printf("User %s provisioned\n", username)
	return nil
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	username := args[0]

	store, closeStore, _, err := openAdminStore()
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	if err := store.Delete(context.Background(), username); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	fmt.Printf("User %s deleted\n", username)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	store, closeStore, _, err := openAdminStore()
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	usernames, err := store.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	sort.Strings(usernames)

	table := output.NewTableData("USERNAME", "ENABLED", "MECHANISMS")
	for _, name := range usernames {
		user, err := store.Lookup(context.Background(), name)
		if err != nil {
			return fmt.Errorf("failed to look up %s: %w", name, err)
		}

		mechanisms := make([]string, 0, len(user.Scram)+1)
		if user.PasswordHash != "" {
			mechanisms = append(mechanisms, "PLAIN")
		}
		for mechanism := range user.Scram {
			mechanisms = append(mechanisms, mechanism)
		}
		sort.Strings(mechanisms)

		table.AddRow(user.Username, fmt.Sprintf("%t", user.Enabled), strings.Join(mechanisms, ", "))
	}

	return output.PrintTable(os.Stdout, table)
}

// promptPassword prompts for a password without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	// Piped input
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(password), nil
}
