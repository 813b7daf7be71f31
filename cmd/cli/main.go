// Command ctfctl performs operator tasks against the ctfarena database:
// migrations, promotions and account blocks.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/ctfarena/internal/bus"
	"github.com/and161185/ctfarena/internal/config"
	"github.com/and161185/ctfarena/internal/migrate"
	"github.com/and161185/ctfarena/internal/model"
	"github.com/and161185/ctfarena/internal/repository/postgres"
	"github.com/and161185/ctfarena/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// userStore is the slice of the user repository the CLI needs.
type userStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) error
	SetRole(ctx context.Context, id uuid.UUID, role model.Role) error
}

// backend is what a command runs against. pub may be nil.
type backend struct {
	users   userStore
	pub     service.BlockPublisher
	migrate func(ctx context.Context) (int64, error)
	close   func()
}

type opener func(ctx context.Context) (*backend, error)

func main() {
	if err := newRootCommand(openFromEnv, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func openFromEnv(ctx context.Context) (*backend, error) {
	cfg, err := config.LoadCLI(ctx)
	if err != nil {
		return nil, err
	}
	db, err := postgres.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	be := &backend{
		users: postgres.NewUserRepo(db),
		migrate: func(ctx context.Context) (int64, error) {
			if err := migrate.Up(ctx, cfg.DBDSN); err != nil {
				return 0, err
			}
			return migrate.Version(ctx, cfg.DBDSN)
		},
		close: db.Close,
	}
	if cfg.NATSURL != "" {
		log, _ := zap.NewDevelopment(zap.IncreaseLevel(zap.WarnLevel))
		b, err := bus.Connect(cfg.NATSURL, log)
		if err != nil {
			db.Close()
			return nil, err
		}
		be.pub = b
		be.close = func() {
			b.Close()
			db.Close()
		}
	}
	return be, nil
}

func newRootCommand(open opener, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ctfctl",
		Short:         "Operator tool for ctfarena",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	cmd.AddCommand(
		newVersionCommand(),
		newMigrateCommand(open),
		newPromoteCommand(open),
		newBlockCommand(open, true),
		newBlockCommand(open, false),
	)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "ctfctl %s (%s)\n", version, buildDate)
			return nil
		},
	}
}

func newMigrateCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, be *backend) error {
				v, err := be.migrate(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
				return nil
			})
		},
	}
}

func newPromoteCommand(open opener) *cobra.Command {
	var demote bool
	cmd := &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the ADMIN role to an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role := model.RoleAdmin
			if demote {
				role = model.RoleUser
			}
			return withBackend(cmd, open, func(ctx context.Context, be *backend) error {
				u, err := be.users.GetByEmail(ctx, service.NormalizeEmail(args[0]))
				if err != nil {
					return fmt.Errorf("lookup %s: %w", args[0], err)
				}
				if err := be.users.SetRole(ctx, u.ID, role); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.Email, role)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&demote, "demote", false, "Set the USER role instead")
	return cmd
}

func newBlockCommand(open opener, blocked bool) *cobra.Command {
	use, short, verb := "block <email>", "Suspend an account", "blocked"
	if !blocked {
		use, short, verb = "unblock <email>", "Lift an account suspension", "unblocked"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, open, func(ctx context.Context, be *backend) error {
				u, err := be.users.GetByEmail(ctx, service.NormalizeEmail(args[0]))
				if err != nil {
					return fmt.Errorf("lookup %s: %w", args[0], err)
				}
				if err := be.users.SetBlocked(ctx, u.ID, blocked); err != nil {
					return err
				}
				switch {
				case be.pub != nil:
					if err := be.pub.PublishBlock(ctx, u.ID, blocked); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: block-list event not published: %v\n", err)
					}
				case !blocked:
					// Servers heal blocks from the store but keep stale entries until restart.
					fmt.Fprintln(cmd.ErrOrStderr(), "warning: NATS_URL is not set; running servers keep rejecting this account until restarted")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", u.Email, verb)
				return nil
			})
		},
	}
}

func withBackend(cmd *cobra.Command, open opener, fn func(context.Context, *backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	be, err := open(ctx)
	if err != nil {
		return err
	}
	if be.close != nil {
		defer be.close()
	}
	return fn(ctx, be)
}
