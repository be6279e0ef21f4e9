package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/contact-sync/internal/cli"
	"github.com/Veraticus/contact-sync/internal/common"
	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/normalize"
	"github.com/Veraticus/contact-sync/internal/service"
	"github.com/Veraticus/contact-sync/internal/storage"
)

func identitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identities",
		Short: "Manage the customer registry",
		Long:  `List, add, delete and update the registry identities that imports are matched against.`,
		Example: `  # Show the registry
  contactsync identities list

  # Register a customer
  contactsync identities add --name "Priya Sharma" --phone 9822012345 --location Pune

  # Correct a phone number
  contactsync identities set-phone <id> 9822054321`,
	}

	cmd.AddCommand(identitiesListCmd())
	cmd.AddCommand(identitiesAddCmd())
	cmd.AddCommand(identitiesDeleteCmd())
	cmd.AddCommand(identitiesSetPhoneCmd())

	return cmd
}

func identitiesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all identities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return listIdentities(ctx, store, cmd.OutOrStdout())
		},
	}
}

func listIdentities(ctx context.Context, store service.IdentityLister, out io.Writer) error {
	identities, err := store.ListAllIdentities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}

	if len(identities) == 0 {
		fmt.Fprintln(out, cli.SubtitleStyle.Render("No identities found."))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join([]string{
		cli.TableHeaderStyle.Render("ID"),
		cli.TableHeaderStyle.Render("NAME"),
		cli.TableHeaderStyle.Render("PHONE"),
		cli.TableHeaderStyle.Render("LOCATION"),
		cli.TableHeaderStyle.Render("REF"),
	}, "\t"))
	for _, id := range identities {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id.ID, id.Name, id.Phone, id.Location, id.ExternalRef)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s\n", cli.SubtitleStyle.Render(fmt.Sprintf("%d identities", len(identities))))
	return nil
}

func identitiesAddCmd() *cobra.Command {
	var name, phone, location, ref string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new identity",
		Long: `Register a new identity. The name is cleaned up and the phone reduced to digits.
A name or phone already in the registry is rejected.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			return addIdentity(ctx, store, cmd.OutOrStdout(), name, phone, location, ref)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Customer name (required)")
	cmd.Flags().StringVarP(&phone, "phone", "p", "", "Phone number (required)")
	cmd.Flags().StringVar(&location, "location", "", "Location or city")
	cmd.Flags().StringVar(&ref, "ref", "", "External customer reference")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

func addIdentity(ctx context.Context, store service.Registry, out io.Writer, name, phone, location, ref string) error {
	var attrs model.Attributes
	if location != "" {
		attrs = append(attrs, model.Attribute{Key: storage.LocationFields[0], Value: model.StringValue(location)})
	}
	if ref != "" {
		attrs = append(attrs, model.Attribute{Key: storage.ExternalRefFields[0], Value: model.StringValue(ref)})
	}

	identity, err := store.CreateIdentity(ctx, name, phone, attrs)
	if err != nil {
		var dup *common.DuplicateConflictError
		if errors.As(err, &dup) {
			return fmt.Errorf("%s is already registered as %q (%s): %w", dup.Field, dup.Existing.Name, dup.Existing.ID, err)
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}

	fmt.Fprintf(out, "%s Created identity %s (%s, %s)\n",
		cli.SuccessStyle.Render(cli.SuccessIcon),
		cli.InfoStyle.Render(identity.ID),
		identity.Name,
		identity.Phone)
	return nil
}

func identitiesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteIdentity(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to delete identity: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted identity %s\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(args[0]))
			return nil
		},
	}
}

func identitiesSetPhoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-phone <id> <phone>",
		Short: "Replace an identity's phone number",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := normalize.PhoneError(args[1]); err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.UpdateIdentityPhone(ctx, args[0], args[1]); err != nil {
				return fmt.Errorf("failed to update phone: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated %s to %s\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(args[0]),
				normalize.Phone(args[1]))
			return nil
		},
	}
}
