// Command console is a terminal front-end over the client core: it drives
// the session lifecycle, feeds the inactivity watchdog from user input, and
// dispatches to the workflow machines behind the view router.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/client/accounts"
	"github.com/gatehouse-vms/gatehouse/internal/client/api"
	"github.com/gatehouse-vms/gatehouse/internal/client/session"
	clientvisitors "github.com/gatehouse-vms/gatehouse/internal/client/visitors"
	"github.com/gatehouse-vms/gatehouse/internal/client/views"
	"github.com/gatehouse-vms/gatehouse/internal/visitors"
)

type config struct {
	ServerURL       string        `envconfig:"GATEHOUSE_URL" default:"http://127.0.0.1:8080"`
	CredentialFile  string        `envconfig:"GATEHOUSE_CREDENTIAL_FILE"`
	InactivityLimit time.Duration `envconfig:"GATEHOUSE_INACTIVITY_LIMIT" default:"15m"`
}

type console struct {
	session  *session.Manager
	watchdog *session.Watchdog
	accounts *accounts.Machine
	visitors *clientvisitors.Machine
	out      *bufio.Writer
	in       *bufio.Scanner
	expired  chan struct{}
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.CredentialFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		cfg.CredentialFile = filepath.Join(dir, "gatehouse", "credential.json")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client := api.New(cfg.ServerURL, logger)
	mgr := session.NewManager(client, session.NewFileStore(cfg.CredentialFile), logger)

	c := &console{
		session:  mgr,
		accounts: accounts.NewMachine(client, mgr),
		visitors: clientvisitors.NewMachine(client, mgr),
		out:      bufio.NewWriter(os.Stdout),
		in:       bufio.NewScanner(os.Stdin),
		expired:  make(chan struct{}, 1),
	}
	c.watchdog = session.NewWatchdog(cfg.InactivityLimit, func() {
		mgr.Expire()
		select {
		case c.expired <- struct{}{}:
		default:
		}
	})

	defer mgr.HandleUnload()
	c.run(context.Background())
}

func (c *console) run(ctx context.Context) {
	if id, err := c.session.Restore(); err == nil && id != nil {
		c.printf("Session restored for %s (%s)\n", id.DisplayName, id.Role)
		c.watchdog.Start()
	}

	c.printf("gatehouse console. Type 'help' for commands.\n")
	for {
		c.printf("> ")
		_ = c.out.Flush()
		if !c.in.Scan() {
			return
		}
		select {
		case <-c.expired:
			c.printf("Session expired after inactivity. Please log in again.\n")
		default:
		}
		c.watchdog.Touch()

		fields := strings.Fields(c.in.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			c.session.Logout(ctx)
			c.watchdog.Stop()
			_ = c.out.Flush()
			return
		}
		c.dispatch(ctx, fields)
		_ = c.out.Flush()
	}
}

func (c *console) dispatch(ctx context.Context, args []string) {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "help":
		c.help()
	case "login":
		c.login(ctx, rest)
	case "logout":
		c.session.Logout(ctx)
		c.watchdog.Stop()
		c.printf("Logged out.\n")
	case "reload":
		// Simulates a shell reload: credentials survive for the next start.
		c.session.MarkReload()
		c.printf("Reload marked; credentials kept for restart.\n")
	case "views":
		c.listViews()
	case "users":
		c.listUsers(ctx)
	case "lock", "unlock":
		c.lifecycle(ctx, cmd, rest)
	case "pending":
		c.listEntries(func(ctx context.Context) ([]visitors.Entry, error) { return c.visitors.Pending(ctx) }, ctx)
	case "entries":
		c.listEntries(func(ctx context.Context) ([]visitors.Entry, error) { return c.visitors.Entries(ctx) }, ctx)
	case "active":
		c.listEntries(func(ctx context.Context) ([]visitors.Entry, error) { return c.visitors.Active(ctx) }, ctx)
	case "approve":
		c.decide(ctx, rest, true)
	case "reject":
		c.decide(ctx, rest, false)
	case "checkout":
		c.checkout(ctx, rest)
	default:
		c.printf("Unknown command %q. Type 'help'.\n", cmd)
	}
}

func (c *console) help() {
	c.printf(`Commands:
  login <empid> <password>     authenticate
  logout                       end the session
  reload                       keep credentials across a restart
  views                        list the screens your role can open
  users                        list accounts
  lock <empid> [master-pw]     lock an account
  unlock <empid> [master-pw]   unlock an account
  entries | pending | active   visitor lists
  approve <card-no>            approve a pending entry
  reject <card-no> [reason]    reject a pending entry
  checkout <card-no>           check a visitor out
  quit
`)
}

func (c *console) login(ctx context.Context, args []string) {
	if len(args) != 2 {
		c.printf("usage: login <empid> <password>\n")
		return
	}
	id, err := c.session.Login(ctx, args[0], args[1])
	if err != nil {
		if errors.Is(err, session.ErrThrottled) {
			c.printf("%s\n", err)
			return
		}
		c.printf("Login failed: %s (%d attempts left)\n", err, c.session.AttemptsLeft())
		return
	}
	c.watchdog.Start()
	c.printf("Welcome, %s (%s).\n", id.DisplayName, id.Role)
	c.listViews()
}

func (c *console) requireSession() *authz.Identity {
	id := c.session.Identity()
	if id == nil {
		c.printf("Not logged in.\n")
	}
	return id
}

func (c *console) listViews() {
	id := c.requireSession()
	if id == nil {
		return
	}
	for _, v := range views.For(id) {
		c.printf("  %s\n", v)
	}
}

func (c *console) listUsers(ctx context.Context) {
	if c.requireSession() == nil {
		return
	}
	list, err := c.accounts.Refresh(ctx)
	if err != nil {
		c.printf("%s\n", err)
		return
	}
	for _, a := range list {
		c.printf("  %-10s %-20s %-8s %s\n", a.EmployeeID, a.Name, a.Role, a.Status)
	}
}

func (c *console) lifecycle(ctx context.Context, cmd string, args []string) {
	if c.requireSession() == nil {
		return
	}
	if len(args) < 1 {
		c.printf("usage: %s <empid> [master-password]\n", cmd)
		return
	}
	masterPassword := ""
	if len(args) > 1 {
		masterPassword = args[1]
	}
	op := c.accounts.Lock
	if cmd == "unlock" {
		op = c.accounts.Unlock
	}
	// Elevated targets are gated by the master password; only plain targets
	// get the interactive prompt.
	confirmed := true
	if !c.targetElevated(args[0]) {
		confirmed = c.confirm(cmd + " " + args[0])
	}
	if err := op(ctx, args[0], masterPassword, confirmed); err != nil {
		c.printf("%s\n", err)
		return
	}
	c.printf("Done.\n")
}

func (c *console) targetElevated(empid string) bool {
	for _, a := range c.accounts.Accounts() {
		if a.EmployeeID == empid {
			return authz.Elevated(a.Role)
		}
	}
	return false
}

func (c *console) confirm(action string) bool {
	c.printf("Confirm %s? [y/N] ", action)
	_ = c.out.Flush()
	if !c.in.Scan() {
		return false
	}
	c.watchdog.Touch()
	answer := strings.ToLower(strings.TrimSpace(c.in.Text()))
	return answer == "y" || answer == "yes"
}

func (c *console) listEntries(fetch func(context.Context) ([]visitors.Entry, error), ctx context.Context) {
	if c.requireSession() == nil {
		return
	}
	entries, err := fetch(ctx)
	if err != nil {
		c.printf("%s\n", err)
		return
	}
	if len(entries) == 0 {
		c.printf("  (none)\n")
		return
	}
	for _, e := range entries {
		status := string(e.Approval)
		if e.CheckedOut() {
			status = "OUT"
		}
		c.printf("  %-14s %-20s host=%s %s\n", e.CardNo, e.Name, e.HostEmployeeID, status)
	}
}

func (c *console) decide(ctx context.Context, args []string, approve bool) {
	if c.requireSession() == nil {
		return
	}
	if len(args) < 1 {
		c.printf("usage: approve|reject <card-no> [reason]\n")
		return
	}
	var entry *visitors.Entry
	var err error
	if approve {
		entry, err = c.visitors.Approve(ctx, args[0])
	} else {
		entry, err = c.visitors.Reject(ctx, args[0], strings.Join(args[1:], " "))
	}
	if err != nil {
		c.printf("%s\n", err)
		return
	}
	c.printf("Entry %s is now %s.\n", entry.CardNo, entry.Approval)
}

func (c *console) checkout(ctx context.Context, args []string) {
	if c.requireSession() == nil {
		return
	}
	if len(args) != 1 {
		c.printf("usage: checkout <card-no>\n")
		return
	}
	entry, err := c.visitors.Checkout(ctx, args[0])
	if err != nil {
		c.printf("%s\n", err)
		return
	}
	c.printf("Visitor %s checked out.\n", entry.Name)
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
