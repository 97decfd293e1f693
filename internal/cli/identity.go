package cli

import (
	"fmt"
	"strings"
	"time"

	"cloudops/internal/models"

	"github.com/spf13/cobra"
)

const defaultAPIKeyExpiry = 30 * 24 * time.Hour

// accessFlags backs --account-role and --namespace-permission.
type accessFlags struct {
	accountRole string
	permissions []string
}

func (f *accessFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.accountRole, "account-role", "", "account role, for example read or developer")
	cmd.Flags().StringArrayVar(&f.permissions, "namespace-permission", nil, "namespace permission as <namespace>=<permission>, repeatable")
}

// access turns the account role and repeated ns=permission entries into an
// access block, qualifying each namespace with the account id.
func (f *accessFlags) access(a *app) (models.Access, error) {
	perms := make(map[string]string, len(f.permissions))
	for _, entry := range f.permissions {
		ns, perm, ok := strings.Cut(entry, "=")
		if !ok || ns == "" || perm == "" {
			return models.Access{}, fmt.Errorf("invalid --namespace-permission %q, expected <namespace>=<permission>", entry)
		}
		perms[a.cfg.FullyQualifiedName(ns)] = perm
	}
	return models.NewAccess(f.accountRole, perms), nil
}

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage account users",
	}
	cmd.AddCommand(newUserListCmd(a), newUserCreateCmd(a))
	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users in the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.identity.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			a.print(cmd, userTable(users))
			return nil
		},
	}
}

func newUserCreateCmd(a *app) *cobra.Command {
	var flags accessFlags

	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Invite a user to the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			access, err := flags.access(a)
			if err != nil {
				return err
			}
			id, op, err := a.identity.CreateUser(cmd.Context(), models.UserSpec{Email: args[0], Access: access})
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			a.print(cmd, newCreatedView(id, op))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newServiceAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "service-account",
		Aliases: []string{"sa"},
		Short:   "Manage service accounts",
	}
	cmd.AddCommand(newServiceAccountListCmd(a), newServiceAccountCreateCmd(a))
	return cmd
}

func newServiceAccountListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List service accounts in the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.identity.ListServiceAccounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list service accounts: %w", err)
			}
			a.print(cmd, serviceAccountTable(accounts))
			return nil
		},
	}
}

func newServiceAccountCreateCmd(a *app) *cobra.Command {
	var (
		flags       accessFlags
		description string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a service account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			access, err := flags.access(a)
			if err != nil {
				return err
			}
			id, op, err := a.identity.CreateServiceAccount(cmd.Context(), models.ServiceAccountSpec{
				Name:        args[0],
				Description: description,
				Access:      access,
			})
			if err != nil {
				return fmt.Errorf("failed to create service account: %w", err)
			}
			a.print(cmd, newCreatedView(id, op))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&description, "description", "", "service account description")
	return cmd
}

func newAPIKeyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api-key",
		Short: "Manage API keys",
	}
	cmd.AddCommand(newAPIKeyCreateCmd(a))
	return cmd
}

func newAPIKeyCreateCmd(a *app) *cobra.Command {
	var (
		ownerID     string
		ownerType   string
		description string
		expiry      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an API key for a user or service account",
		Long: `Create an API key. The token is shown once and cannot be retrieved
again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ownerID == "" {
				return fmt.Errorf("--owner-id flag is required")
			}
			owner, err := parseOwnerType(ownerType)
			if err != nil {
				return err
			}
			if expiry <= 0 {
				return fmt.Errorf("--expiry must be positive, got %s", expiry)
			}

			desc := description
			if desc == "" {
				desc = args[0] + " API Key Description"
			}

			spec := models.APIKeySpec{
				OwnerID:     ownerID,
				OwnerType:   owner,
				DisplayName: args[0],
				Description: desc,
				ExpiryTime:  time.Now().Add(expiry).UTC().Truncate(time.Second),
			}
			key, err := a.identity.CreateAPIKey(cmd.Context(), spec)
			if err != nil {
				return fmt.Errorf("failed to create api key: %w", err)
			}

			fmt.Fprintln(cmd.ErrOrStderr(), "Store the token now, it cannot be shown again.")
			a.print(cmd, apiKeyView{
				KeyID:   key.KeyID,
				Token:   key.Token,
				Expires: spec.ExpiryTime.Format(time.RFC3339),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner-id", "", "id of the user or service account that owns the key (required)")
	cmd.Flags().StringVar(&ownerType, "owner-type", "service-account", "owner type: user or service-account")
	cmd.Flags().StringVar(&description, "description", "", "key description (default \"<name> API Key Description\")")
	cmd.Flags().DurationVar(&expiry, "expiry", defaultAPIKeyExpiry, "time until the key expires")
	return cmd
}

func parseOwnerType(s string) (string, error) {
	switch s {
	case "user":
		return models.OwnerTypeUser, nil
	case "service-account":
		return models.OwnerTypeServiceAccount, nil
	default:
		return "", fmt.Errorf("invalid --owner-type %q, options are user or service-account", s)
	}
}
