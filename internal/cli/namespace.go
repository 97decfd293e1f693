package cli

import (
	"fmt"
	"strings"
	"time"

	"cloudops/internal/cloudapi"
	"cloudops/internal/config"
	"cloudops/internal/pki"
	"cloudops/internal/provisioner"
	"cloudops/internal/rotation"

	"github.com/spf13/cobra"
)

func newNamespaceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "namespace",
		Aliases: []string{"ns"},
		Short:   "Manage namespaces and their client CA bundles",
	}
	cmd.AddCommand(
		newNamespaceListCmd(a),
		newNamespaceGetCmd(a),
		newNamespaceCreateCmd(a),
		newNamespaceRotateCmd(a),
		newNamespacePruneCmd(a),
		newNamespaceInspectCmd(a),
	)
	return cmd
}

func newNamespaceListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all namespaces in the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.namespaces.ListNamespaces(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list namespaces: %w", err)
			}
			a.print(cmd, namespaceTable(list))
			return nil
		},
	}
}

func newNamespaceGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := a.cfg.FullyQualifiedName(args[0])
			res := cloudapi.LookupNamespace(cmd.Context(), a.namespaces, id)
			switch res.Status {
			case cloudapi.LookupNotFound:
				return fmt.Errorf("namespace %s not found", id)
			case cloudapi.LookupFailed:
				return fmt.Errorf("failed to get namespace %s: %w", id, res.Err)
			}
			a.print(cmd, namespaceView{*res.Namespace})
			return nil
		},
	}
}

func newNamespaceCreateCmd(a *app) *cobra.Command {
	var (
		authMode      string
		regions       []string
		retentionDays int
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a namespace, or wait for an existing one to become active",
		Long: `Create a namespace in API key or mTLS mode and wait until it is active.
An mTLS namespace starts with a freshly generated client CA. Running the
command against an existing namespace creates nothing and only waits for
it to become active.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prov := provisioner.New(a.namespaces, pki.NewFactory(a.cfg.Rotation.CA), provisioner.OptionsFromConfig(a.cfg), a.logger)
			res, err := prov.CreateOrGet(cmd.Context(), provisioner.Request{
				Name:          args[0],
				AuthMode:      authMode,
				Regions:       regions,
				RetentionDays: retentionDays,
			})
			if err != nil {
				return err
			}

			transitions := make([]string, len(res.States))
			for i, state := range res.States {
				transitions[i] = string(state)
			}
			view := provisionView{
				Namespace:   res.NamespaceID,
				State:       string(res.State()),
				Created:     res.Created,
				Transitions: strings.Join(transitions, " -> "),
			}
			if res.CA != nil {
				view.CAFingerprint = res.CA.Fingerprint()
				view.CAExpires = res.CA.Cert.NotAfter.UTC().Format(time.RFC3339)
			}
			a.print(cmd, view)
			return nil
		},
	}

	cmd.Flags().StringVar(&authMode, "auth-mode", config.AuthModeAPIKey, "authentication mode: api_key or mtls")
	cmd.Flags().StringSliceVar(&regions, "region", nil, "region to place the namespace in (default from provisioning.default_regions)")
	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "workflow history retention in days (default from provisioning.default_retention_days)")
	return cmd
}

func newNamespaceRotateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-ca <name>",
		Short: "Append a new client CA to the namespace trust bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.rotator().Rotate(cmd.Context(), a.cfg.FullyQualifiedName(args[0]))
			if err != nil {
				return err
			}

			certs, err := pki.Decode(res.Bundle)
			if err != nil {
				return err
			}
			view := rotationView{
				Namespace:           res.NamespaceID,
				CACommonName:        res.CA.Cert.Subject.CommonName,
				CAFingerprint:       res.CA.Fingerprint(),
				CAExpires:           res.CA.Cert.NotAfter.UTC().Format(time.RFC3339),
				BundleSize:          len(certs),
				BaseResourceVersion: res.BaseResourceVersion,
				Attempts:            res.Attempts,
				Conflicts:           res.Conflicts,
			}
			if res.Operation != nil {
				view.OperationID = res.Operation.ID
			}
			a.print(cmd, view)
			return nil
		},
	}
}

func newNamespacePruneCmd(a *app) *cobra.Command {
	var opts rotation.PruneOptions

	cmd := &cobra.Command{
		Use:   "prune-ca <name>",
		Short: "Remove client CAs from the namespace trust bundle",
		Long: `Remove client CAs that are expired, older than the newest N, or listed by
fingerprint. The bundle is never left empty.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.rotator().Prune(cmd.Context(), a.cfg.FullyQualifiedName(args[0]), opts)
			if err != nil {
				return err
			}
			if res.Noop {
				fmt.Fprintf(cmd.OutOrStdout(), "No client CAs matched, trust bundle of %s left unchanged.\n", res.NamespaceID)
				return nil
			}
			a.print(cmd, pruneView{
				Namespace: res.NamespaceID,
				Removed:   res.Removed,
				Remaining: res.Remaining,
			})
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.RemoveExpired, "expired", false, "remove expired CAs")
	cmd.Flags().IntVar(&opts.KeepNewest, "keep-newest", 0, "keep only the newest N CAs")
	cmd.Flags().StringSliceVar(&opts.Fingerprints, "fingerprint", nil, "SHA-256 fingerprint of a CA to remove")
	return cmd
}

func newNamespaceInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect-ca <name>",
		Short: "List the client CAs in the namespace trust bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := a.rotator().Inspect(cmd.Context(), a.cfg.FullyQualifiedName(args[0]))
			if err != nil {
				return err
			}
			a.print(cmd, certificateTable(details))
			return nil
		},
	}
}

func (a *app) rotator() *rotation.Rotator {
	return rotation.New(a.namespaces, pki.NewFactory(a.cfg.Rotation.CA), rotation.OptionsFromConfig(a.cfg.Rotation), a.logger)
}
