package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/cloudbox/internal/client/config"
	"github.com/dmitrijs2005/cloudbox/internal/common"
	"github.com/dmitrijs2005/cloudbox/internal/logging"
	"github.com/spf13/cobra"
)

// appFactory builds the App once flags are parsed. Tests replace it to run
// commands against an in-memory database.
type appFactory func(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*App, error)

func defaultFactory(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*App, error) {
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	return NewApp(ctx, cfg, in, out, log)
}

// NewRootCommand returns the cloudbox command tree. cfg holds the defaults,
// environment and config file layers; flags are bound on top of it.
func NewRootCommand(cfg *config.Config) *cobra.Command {
	return newRootCommand(cfg, defaultFactory)
}

func newRootCommand(cfg *config.Config, factory appFactory) *cobra.Command {
	var app *App

	rootCmd := &cobra.Command{
		Use:           common.AppName,
		Short:         "Manage your CloudBox files from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := factory(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			app = a
			return app.Bootstrap(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if app == nil {
				return nil
			}
			return app.Close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Shell(cmd.Context())
		},
	}

	config.BindFlags(rootCmd.PersistentFlags(), cfg)

	get := func() *App { return app }

	rootCmd.AddCommand(
		newShellCmd(get),
		newSignupCmd(get),
		newLoginCmd(get),
		newLogoutCmd(get),
		newWhoamiCmd(get),
		newListCmd(get),
		newTrashCmd(get),
		newUploadCmd(get),
		newRenameCmd(get),
		newShareCmd(get),
		newLinkCmd(get),
		newRemoveCmd(get),
		newRestoreCmd(get),
		newPurgeCmd(get),
		newEmptyTrashCmd(get),
		newPurgeExpiredCmd(get),
	)

	return rootCmd
}

func newShellCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Shell(cmd.Context())
		},
	}
}

func newSignupCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log into it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Signup(cmd.Context())
		},
	}
}

func newLoginCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Login(cmd.Context())
		},
	}
}

func newLogoutCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session and wipe the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Logout(cmd.Context())
		},
	}
}

func newWhoamiCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().Whoami(cmd.Context())
		},
	}
}

func newListCmd(app func() *App) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:     "ls [term]",
		Aliases: []string{"list"},
		Short:   "List files",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			term := search
			if term == "" {
				term = strings.Join(args, " ")
			}
			return app().List(cmd.Context(), term)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "q", "", "only show files whose name contains this text")
	return cmd
}

func newTrashCmd(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trash",
		Short: "List trashed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().ListTrash(cmd.Context())
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List trashed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().ListTrash(cmd.Context())
		},
	})
	return cmd
}

func newUploadCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload files; directories are uploaded recursively",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app().Upload(cmd.Context(), args)
		},
	}
}

func newRenameCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <new name>",
		Short: "Rename a file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app().Rename(cmd.Context(), args[0], strings.Join(args[1:], " "))
		},
	}
}

func newShareCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "share <id>",
		Short: "Print a public share link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app().Share(cmd.Context(), args[0])
		},
	}
}

func newLinkCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "link <id>",
		Short: "Print a short-lived download URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app().Link(cmd.Context(), args[0])
		},
	}
}

func newRemoveCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Move a file to the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app().Trash(cmd.Context(), args[0])
		},
	}
}

func newRestoreCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a file from the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app().Restore(cmd.Context(), args[0])
		},
	}
}

func newPurgeCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <id>",
		Short: "Delete a trashed file permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app().Purge(cmd.Context(), args[0])
		},
	}
}

func newEmptyTrashCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "empty-trash",
		Short: "Delete every trashed file permanently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().EmptyTrash(cmd.Context())
		},
	}
}

func newPurgeExpiredCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-expired",
		Short: "Ask the server to drop files trashed more than 30 days ago",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app().PurgeExpired(cmd.Context())
		},
	}
}
