// Command accrual-cli is an operator tool for the accrual server: it mints
// identity tokens, previews seed derivations and drives the advance loop
// from outside the server process.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/amirasaad/accrual/infra/provider/httpjson"
	"github.com/amirasaad/accrual/pkg/access"
	"github.com/amirasaad/accrual/pkg/config"
	"github.com/amirasaad/accrual/pkg/domain/account"
	authsvc "github.com/amirasaad/accrual/pkg/service/auth"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	envServer = "ACCRUAL_SERVER"
	envToken  = "ACCRUAL_TOKEN"
	envSecret = "AUTH_JWT_SECRET"
)

var (
	bold  = color.New(color.Bold)
	good  = color.New(color.FgGreen)
	muted = color.New(color.Faint)
	warn  = color.New(color.FgYellow)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err) //nolint:errcheck
		os.Exit(1)
	}
}

type options struct {
	server  string
	token   string
	noColor bool
	timeout time.Duration
}

func (o *options) client() (*httpjson.Client, error) {
	return httpjson.New(o.server, httpjson.Options{
		Timeout:    o.timeout,
		MaxRetries: 2,
		ApiKey:     o.token,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "accrual-cli",
		Short:         "Operator tool for the accrual server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if opts.noColor || !isTerminal(cmd.OutOrStdout()) {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr(envServer, "http://localhost:3000"), "server base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv(envToken), "bearer token")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		newTokenCmd(),
		newDeriveCmd(),
		newAccountCmd(opts),
		newPollCmd(opts),
	)
	return root
}

func newTokenCmd() *cobra.Command {
	var (
		issuer string
		expiry time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <identity>",
		Short: "Sign a bearer token for an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readSecret(cmd)
			if err != nil {
				return err
			}
			svc := authsvc.NewWithJWT(
				&config.Jwt{Secret: secret, Issuer: issuer, Expiry: expiry},
				slog.New(slog.NewTextHandler(io.Discard, nil)),
			)
			token, err := svc.IssueToken(access.Identity(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().StringVar(&issuer, "issuer", "accrual", "token issuer, must match the server's AUTH_JWT_ISSUER")
	cmd.Flags().DurationVar(&expiry, "expiry", time.Hour, "token lifetime")
	return cmd
}

// readSecret takes the signing secret from the environment, or prompts for it
// without echo when attached to a terminal.
func readSecret(cmd *cobra.Command) (string, error) {
	if s := os.Getenv(envSecret); s != "" {
		return s, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s is not set", envSecret)
	}
	fmt.Fprint(cmd.ErrOrStderr(), "JWT secret: ") //nolint:errcheck
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr()) //nolint:errcheck
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	if len(raw) == 0 {
		return "", errors.New("empty secret")
	}
	return string(raw), nil
}

func newDeriveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "derive <seed-hex>",
		Short: "Show the category and interval a seed derives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
			if err != nil {
				return fmt.Errorf("seed must be hexadecimal: %w", err)
			}
			d := account.Derive(seed)
			out := cmd.OutOrStdout()
			row(out, "category", fmt.Sprintf("%s (%s)", d.Category.Symbol(), d.Category.Name()))
			row(out, "bucket", strconv.Itoa(d.Bucket))
			row(out, "interval", formatInterval(d.IntervalLength))
			return nil
		},
	}
}

func newAccountCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "account <id>",
		Short: "Show an account's state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
				return fmt.Errorf("account id must be an unsigned integer: %w", err)
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			doc, err := client.Get(cmd.Context(), "accounts/"+args[0])
			if err != nil {
				return err
			}
			acc := doc.Get("data")
			out := cmd.OutOrStdout()
			row(out, "id", acc.Get("id").String())
			row(out, "category", fmt.Sprintf("%s (%s)", acc.Get("category").String(), acc.Get("category_name").String()))
			row(out, "balance", acc.Get("balance").String())
			row(out, "round", fmt.Sprintf("%d/%d", acc.Get("round").Int(), account.MaxRounds))
			row(out, "interval", formatInterval(time.Duration(acc.Get("interval_length_seconds").Int())*time.Second))
			row(out, "next ready", acc.Get("next_ready_at").String())
			switch {
			case acc.Get("withdrawn").Bool():
				row(out, "status", warn.Sprint("withdrawn at "+acc.Get("withdrawn_at").String()))
			case acc.Get("complete").Bool():
				row(out, "status", good.Sprint("complete"))
			default:
				row(out, "status", "accruing")
			}
			for _, p := range acc.Get("prices").Array() {
				muted.Fprintf(out, "  %s  %s\n", p.Get("sampled_at").String(), p.Get("price").String()) //nolint:errcheck
			}
			return nil
		},
	}
}

func newPollCmd(opts *options) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Advance the next ready account, once or on an interval",
		Long: "Looks up the next ready account and advances it by one round. " +
			"The token must belong to the automation agent.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.token == "" {
				return fmt.Errorf("a token is required, pass --token or set %s", envToken)
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			if every <= 0 {
				return pollOnce(cmd.Context(), cmd.OutOrStdout(), client)
			}
			ticker := time.NewTicker(every)
			defer ticker.Stop()
			for {
				if err := pollOnce(cmd.Context(), cmd.OutOrStdout(), client); err != nil {
					warn.Fprintln(cmd.ErrOrStderr(), err) //nolint:errcheck
				}
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "repeat at this interval until interrupted")
	return cmd
}

func pollOnce(ctx context.Context, out io.Writer, client *httpjson.Client) error {
	doc, err := client.Get(ctx, "scheduler/next-ready")
	if err != nil {
		return err
	}
	next := doc.Get("data")
	if !next.Get("found").Bool() {
		muted.Fprintln(out, "no account is ready") //nolint:errcheck
		return nil
	}
	id := next.Get("account_id").Uint()
	round := next.Get("round").Int()

	res, err := client.Post(ctx, fmt.Sprintf("accounts/%d/advance", id), map[string]int64{"round": round})
	if err != nil {
		return fmt.Errorf("advancing account %d: %w", id, err)
	}
	good.Fprintf(out, "advanced account %d to round %d at price %s\n", //nolint:errcheck
		id, res.Get("data.account.round").Int(), res.Get("data.sample.price").String())
	return nil
}

func row(w io.Writer, label, value string) {
	bold.Fprintf(w, "%-12s", label) //nolint:errcheck
	fmt.Fprintln(w, value)          //nolint:errcheck
}

func formatInterval(d time.Duration) string {
	days := d / (24 * time.Hour)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
