// Package cli implements the mailctl command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"minimail/pkg/client"
	"minimail/pkg/util"
)

type options struct {
	server    string
	token     string
	tokenFile string
}

// NewRootCommand builds the mailctl command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "mailctl",
		Short:         "Command line client for the mail server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("MAILCTL_SERVER", "http://localhost:5000"), "server base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "session token (overrides "+tokenEnv+" and the token file)")
	root.PersistentFlags().StringVar(&opts.tokenFile, "token-file", defaultTokenFile(), "where login stores the session token")

	root.AddCommand(
		newSignupCommand(opts),
		newLoginCommand(opts),
		newSendCommand(opts),
		newListCommand(opts, "inbox", "List received mails", "From", (*client.Client).Inbox),
		newListCommand(opts, "sentbox", "List sent mails", "To", (*client.Client).Sentbox),
		newReadCommand(opts),
		newDeleteCommand(opts),
		newWatchCommand(opts),
	)
	return root
}

// Execute runs mailctl and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		return 1
	}
	return 0
}

func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (o *options) anonymous() *client.Client {
	return client.New(o.server)
}

func (o *options) authenticated() (*client.Client, error) {
	token, err := resolveToken(o.token, o.tokenFile)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errors.New("not logged in: run `mailctl login` or pass --token")
	}
	return client.New(o.server, client.WithToken(token)), nil
}

func passwordFlag(cmd *cobra.Command, name, label string) (string, error) {
	v, _ := cmd.Flags().GetString(name)
	if v != "" {
		return v, nil
	}
	return promptPassword(cmd.OutOrStdout(), label)
}

func newSignupCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFlag(cmd, "password", "Password")
			if err != nil {
				return err
			}
			confirm := password
			if !cmd.Flags().Changed("password") {
				if confirm, err = promptPassword(cmd.OutOrStdout(), "Confirm password"); err != nil {
					return err
				}
			}
			if err := opts.anonymous().Signup(cmd.Context(), args[0], password, confirm); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signup successful. Run `mailctl login` to sign in.")
			return nil
		},
	}
	cmd.Flags().String("password", "", "password (prompted when empty)")
	return cmd
}

func newLoginCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in and store the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordFlag(cmd, "password", "Password")
			if err != nil {
				return err
			}
			c := opts.anonymous()
			user, err := c.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			if err := saveToken(opts.tokenFile, c.Token()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", user.Email)
			return nil
		},
	}
	cmd.Flags().String("password", "", "password (prompted when empty)")
	return cmd
}

func newSendCommand(opts *options) *cobra.Command {
	var to, subject, body string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a mail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.authenticated()
			if err != nil {
				return err
			}
			if body == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				body = string(b)
			}
			if to == "" || subject == "" || !util.HasVisibleText(body) {
				return errors.New("--to, --subject and --body are required")
			}
			m, err := c.Send(cmd.Context(), to, subject, body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mail sent to %s (id %s).\n", m.To, m.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient email")
	cmd.Flags().StringVar(&subject, "subject", "", "subject line")
	cmd.Flags().StringVar(&body, "body", "", "HTML body, or - to read stdin")
	return cmd
}

func newListCommand(
	opts *options,
	use, short, counterpart string,
	fetch func(*client.Client, context.Context) ([]client.Mail, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.authenticated()
			if err != nil {
				return err
			}
			mails, err := fetch(c, cmd.Context())
			if err != nil {
				return err
			}
			renderMails(cmd.OutOrStdout(), mails, counterpart)
			return nil
		},
	}
}

func newReadCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Show a mail (marks it read when you are the recipient)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.authenticated()
			if err != nil {
				return err
			}
			m, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderMail(cmd.OutOrStdout(), m)
			return nil
		},
	}
}

func newDeleteCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a mail for both sender and recipient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.authenticated()
			if err != nil {
				return err
			}
			if err := c.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Mail deleted.")
			return nil
		},
	}
}

func newWatchCommand(opts *options) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the inbox and print it whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.authenticated()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			poller := client.NewPoller(c, func(mails []client.Mail) {
				fmt.Fprintf(out, "Inbox updated at %s\n", time.Now().Format(time.TimeOnly))
				renderMails(out, mails, "From")
			},
				client.WithInterval(interval),
				client.WithErrorHandler(func(err error) {
					fmt.Fprintln(cmd.ErrOrStderr(), "poll failed:", describe(err))
				}),
			)
			return poller.Run(cmd.Context())
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultPollInterval, "poll interval")
	return cmd
}
