package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/choreplan/internal/model"
	"github.com/dukerupert/choreplan/internal/store"
	"github.com/dukerupert/choreplan/internal/validate"
)

type newUser struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"notblank,max=100"`
	Password string `json:"password" validate:"min=8,max=72"`
}

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage household accounts",
	}

	var name, password string
	var approve bool
	create := &cobra.Command{
		Use:   "create <email>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := newUser{
				Email:    strings.ToLower(strings.TrimSpace(args[0])),
				Name:     strings.TrimSpace(name),
				Password: password,
			}
			if err := validate.Struct(&in); err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}

			users := store.NewUserStore(a.db)
			u, err := users.Create(cmd.Context(), in.Email, in.Name, string(hash))
			if err != nil {
				return err
			}
			if approve {
				if u, err = users.SetApproved(cmd.Context(), u.ID, true); err != nil {
					return err
				}
			}
			a.logger.Info("user created", "user_id", u.ID, "approved", u.Approved)
			fmt.Fprintf(a.out, "created %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&password, "password", "", "initial password")
	create.Flags().BoolVar(&approve, "approve", false, "approve the account immediately")
	create.MarkFlagRequired("name")
	create.MarkFlagRequired("password")

	cmd.AddCommand(
		create,
		a.setApprovedCmd("approve", "Grant an account access", true),
		a.setApprovedCmd("revoke", "Withdraw an account's access", false),
		a.listUsersCmd("list", "List every account", (*store.UserStore).List),
		a.listUsersCmd("pending", "List accounts awaiting approval", (*store.UserStore).ListPending),
		a.passwordCmd(),
		a.renameCmd(),
		a.deleteUserCmd(),
	)
	return cmd
}

// findUser accepts either an id or an email address.
func findUser(ctx context.Context, users *store.UserStore, ref string) (*model.User, error) {
	var (
		u   *model.User
		err error
	)
	if strings.Contains(ref, "@") {
		u, err = users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(ref)))
	} else {
		u, err = users.GetByID(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("no user %q", ref)
	}
	return u, nil
}

func (a *app) setApprovedCmd(use, short string, approved bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email|id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users := store.NewUserStore(a.db)
			u, err := findUser(cmd.Context(), users, args[0])
			if err != nil {
				return err
			}
			if _, err := users.SetApproved(cmd.Context(), u.ID, approved); err != nil {
				return err
			}
			if !approved {
				// Revoked accounts lose their live sessions too.
				if _, err := store.NewSessionStore(a.db).DeleteForUser(cmd.Context(), u.ID); err != nil {
					return err
				}
			}
			a.logger.Info("user access changed", "user_id", u.ID, "approved", approved)
			fmt.Fprintf(a.out, "%s approved=%t\n", u.Email, approved)
			return nil
		},
	}
}

func (a *app) listUsersCmd(use, short string, list func(*store.UserStore, context.Context) ([]model.User, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := list(store.NewUserStore(a.db), cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tAPPROVED\tCREATED")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", u.ID, u.Email, u.Name, u.Approved, u.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		},
	}
}

func (a *app) passwordCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "password <email|id>",
		Short: "Reset an account's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(password) < 8 || len(password) > 72 {
				return fmt.Errorf("password must be 8 to 72 bytes")
			}
			users := store.NewUserStore(a.db)
			u, err := findUser(cmd.Context(), users, args[0])
			if err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			if err := users.SetPasswordHash(cmd.Context(), u.ID, string(hash)); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "password updated for %s\n", u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <email|id> <name>",
		Short: "Change an account's display name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[1])
			if name == "" {
				return fmt.Errorf("name is required")
			}
			users := store.NewUserStore(a.db)
			u, err := findUser(cmd.Context(), users, args[0])
			if err != nil {
				return err
			}
			if _, err := users.UpdateProfile(cmd.Context(), u.ID, name, u.Image); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s is now %q\n", u.Email, name)
			return nil
		},
	}
}

func (a *app) deleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <email|id>",
		Short: "Delete an account with its sessions, assignments and completions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users := store.NewUserStore(a.db)
			u, err := findUser(cmd.Context(), users, args[0])
			if err != nil {
				return err
			}
			if err := users.Delete(cmd.Context(), u.ID); err != nil {
				return err
			}
			a.logger.Info("user deleted", "user_id", u.ID)
			fmt.Fprintf(a.out, "deleted %s\n", u.Email)
			return nil
		},
	}
}
