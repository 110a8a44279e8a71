package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shiftsync/shiftsync/internal/config"
	"github.com/shiftsync/shiftsync/internal/credentials"
	"github.com/shiftsync/shiftsync/internal/db"
	"github.com/shiftsync/shiftsync/internal/store"
)

var subjectCmd = &cobra.Command{
	Use:   "subject",
	Short: "Manage synced subjects",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

var subjectAddCmd = &cobra.Command{
	Use:   "add [employee-number]",
	Short: "Add a subject and store its roster credentials",
	Long: `Add a subject (or update an existing one) and store its roster login.

This command:
- Creates the subject for the given employee number if it doesn't exist
- Encrypts the roster password with the configured encryption key
- Stores the credential, making the subject eligible for sync
- Reads the password from STDIN

The command uses the --config option to connect to the database.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubjectAdd,
}

func init() {
	subjectAddCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	subjectAddCmd.Flags().String("name", "", "Subject's full name")
	subjectAddCmd.Flags().String("username", "", "Roster service login (required)")
	subjectAddCmd.Flags().String("site-id", "", "Roster site identifier (required)")
	subjectAddCmd.Flags().String("tenant-id", "", "Roster tenant identifier (required)")

	for _, flag := range []string{"config", "username", "site-id", "tenant-id"} {
		if err := subjectAddCmd.MarkFlagRequired(flag); err != nil {
			slog.Error("Failed to mark flag as required", "flag", flag, "error", err)
		}
	}

	subjectCmd.AddCommand(subjectAddCmd)
}

func runSubjectAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	employeeNumber := args[0]
	if employeeNumber == "" {
		return fmt.Errorf("employee number cannot be empty")
	}

	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	fullName, _ := flags.GetString("name")
	username, _ := flags.GetString("username")
	siteID, _ := flags.GetString("site-id")
	tenantID, _ := flags.GetString("tenant-id")

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database == nil {
		return fmt.Errorf("database configuration is required")
	}

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	key, err := cfg.Encryption.GetKey()
	if err != nil {
		return fmt.Errorf("failed to load encryption key: %w", err)
	}
	cipher, err := credentials.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create credential cipher: %w", err)
	}

	enc, err := cipher.Encrypt(credentials.Credentials{
		Username: username,
		Secret:   password,
		SiteID:   siteID,
		TenantID: tenantID,
	})
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	st := store.NewPostgresStore(pool)
	subject, err := st.UpsertSubject(ctx, employeeNumber, fullName)
	if err != nil {
		return err
	}
	if err := st.SetCredentials(ctx, subject.ID, enc); err != nil {
		return err
	}

	slog.Info("Subject stored and eligible for sync",
		"employeeNumber", subject.EmployeeNumber,
		"id", subject.ID)
	return nil
}

// readPassword reads the roster password from the terminal when attached to
// one, otherwise from the command's stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	var reader io.Reader
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print("Roster password: ")
		passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		if len(passwordBytes) == 0 {
			return "", fmt.Errorf("password cannot be empty")
		}
		reader = bytes.NewReader(passwordBytes)
	} else {
		reader = cmd.InOrStdin()
	}

	passwordBytes, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimSpace(string(passwordBytes))
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return password, nil
}
