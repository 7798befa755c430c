// Command offerctl drives the offers backend from a terminal. Tokens are kept in the
// file session store, so a login survives between invocations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/offers-dashboard/activation"
	"github.com/jrsteele09/offers-dashboard/api"
	"github.com/jrsteele09/offers-dashboard/auth"
	"github.com/jrsteele09/offers-dashboard/internal/config"
	apperrors "github.com/jrsteele09/offers-dashboard/internal/errors"
	"github.com/jrsteele09/offers-dashboard/internal/logging"
	"github.com/jrsteele09/offers-dashboard/internal/utils"
	"github.com/jrsteele09/offers-dashboard/offers"
	"github.com/jrsteele09/offers-dashboard/sessions"
)

const passwordEnv = "OFFERCTL_PASSWORD"

const usage = `usage: offerctl [flags] <command>

commands:
  login -u USER [-p PASSWORD]   sign in (password also read from OFFERCTL_PASSWORD)
  logout                        revoke and forget the stored session
  whoami                        show the signed in user
  offers                        list the offer catalog
  activate [-wait] ID           activate an offer, optionally until it completes
  subscriptions                 list active subscriptions
  status TX                     show an activation transaction
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel())

	if err := run(ctx, c, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "offerctl:", err)
		os.Exit(1)
	}
}

type cli struct {
	out     io.Writer
	manager *auth.Manager
	client  *api.Client
	poll    time.Duration
}

// lockedWriter serialises output from pollers and the command itself
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func run(ctx context.Context, c config.Config, args []string, out io.Writer) error {
	out = &lockedWriter{w: out}
	global := flag.NewFlagSet("offerctl", flag.ContinueOnError)
	global.SetOutput(out)
	global.Usage = func() { fmt.Fprint(out, usage) }
	dataDir := global.String("data", c.GetDataFolder(), "data folder holding the session store")
	baseURL := global.String("api", c.GetAPIBaseURL(), "backend API base URL")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	provider, err := sessions.NewFileProvider(filepath.Join(*dataDir, "sessions"), c.GetSessionSecret())
	if err != nil {
		return err
	}
	store, err := provider.Open(sessions.DefaultNamespace)
	if err != nil {
		return err
	}
	manager, client := auth.NewClientSession(*baseURL, store, api.WithTimeout(c.GetAPITimeout()))
	// a rejected stored session just leaves us signed out
	_ = manager.Resurrect(ctx)

	cmd := &cli{out: out, manager: manager, client: client, poll: c.GetPollInterval()}
	name, rest := global.Arg(0), global.Args()[1:]
	switch name {
	case "login":
		return cmd.login(ctx, rest)
	case "logout":
		manager.Logout(ctx)
		fmt.Fprintln(out, "Logged out")
		return nil
	case "whoami":
		return cmd.whoami()
	case "offers":
		return cmd.offers(ctx)
	case "activate":
		return cmd.activate(ctx, rest)
	case "subscriptions":
		return cmd.subscriptions(ctx)
	case "status":
		return cmd.status(ctx, rest)
	}
	global.Usage()
	return fmt.Errorf("unknown command %q", name)
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(c.out)
	username := fs.String("u", "", "username")
	password := fs.String("p", os.Getenv(passwordEnv), "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.manager.Login(ctx, *username, *password); err != nil {
		return errors.New(auth.LoginErrorMessage(err))
	}
	fmt.Fprintf(c.out, "Logged in as %s\n", c.manager.User().DisplayName())
	return nil
}

func (c *cli) whoami() error {
	u, err := c.manager.RequireUser()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s <%s>\n", u.DisplayName(), u.Email)
	if u.Account != nil {
		fmt.Fprintf(c.out, "Balance: %s\n", u.Account.Balance.Format())
	}
	return nil
}

func (c *cli) offers(ctx context.Context) error {
	if _, err := c.manager.RequireUser(); err != nil {
		return err
	}
	list, err := c.client.ListOffers(ctx)
	if err != nil {
		return errors.New(offers.MsgLoadFailed)
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tDAYS\tACTIVE")
	for _, o := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", o.ID, o.Name, o.Price.Format(), o.DurationDays, o.IsActive)
	}
	return tw.Flush()
}

func (c *cli) activate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("activate", flag.ContinueOnError)
	fs.SetOutput(c.out)
	wait := fs.Bool("wait", false, "poll until the activation completes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: activate takes one offer id", apperrors.ErrInvalidInput)
	}
	id, err := api.ParseOfferID(fs.Arg(0))
	if err != nil {
		return err
	}
	if _, err := c.manager.RequireUser(); err != nil {
		return err
	}

	board := offers.NewBoard(c.client,
		offers.WithPollInterval(c.poll),
		offers.WithNotifier(activation.NotifierFunc(func(n activation.Notification) {
			fmt.Fprintln(c.out, n.Message)
		})),
	)
	defer board.Close()

	if err := board.Load(ctx); err != nil {
		return err
	}
	resp, err := board.Activate(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Transaction %s\n", resp.TransactionID)
	if !*wait {
		return nil
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for board.Polling() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	entry, _ := board.Statuses().Get(resp.TransactionID)
	if entry.Unknown() {
		return entry.PollErr
	}
	if entry.Status == api.StatusFailed {
		return errors.New(activation.MsgActivationFailed)
	}
	return nil
}

func (c *cli) subscriptions(ctx context.Context) error {
	if _, err := c.manager.RequireUser(); err != nil {
		return err
	}
	subs, err := c.client.Subscriptions(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSACTION\tOFFER\tACTIVATED\tREMAINING")
	for _, s := range subs {
		name := s.OfferID.String()
		if s.Offer != nil {
			name = s.Offer.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.TransactionID, name, s.ActivationDate.Format("Jan 2, 2006"), s.TimeRemaining(now))
	}
	return tw.Flush()
}

func (c *cli) status(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: status takes one transaction id", apperrors.ErrInvalidInput)
	}
	if _, err := c.manager.RequireUser(); err != nil {
		return err
	}
	st, err := c.client.ActivationStatus(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s offer=%s amount=%s status=%s\n", st.TransactionID, st.OfferID, st.Amount.Format(), st.Status)
	if completed := utils.Value(st.CompletedAt); !completed.IsZero() {
		fmt.Fprintf(c.out, "completed %s\n", completed.Format(time.RFC3339))
	}
	return nil
}
