// Command utodo is a CLI client for the uTodo service with a local-first
// encrypted store for offline use.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alexandre-rey/utodo-sub000/internal/config"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
	"github.com/alexandre-rey/utodo-sub000/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `utodo CLI
Usage:
  utodo [-config file] [-verbose] <cmd> [args]

Commands:
  version
  register    -email <e> -password <p>
  login       -email <e> -password <p>
  logout
  profile
  list        [-page n] [-limit n] [-search s] [-status id]
  add         -title <t> [-desc d] [-status id] [-priority n] [-due RFC3339]
  done        -id <id>
  rm          -id <id>
  mv          -id <id> -status <statusID>
  bulk        -ids <id,id,...> -action <delete|complete|incomplete|changeStatus> [-status id]
  statuses
  status-add  -label <l> [-color #hex]
  status-rm   -id <statusID> [-resolve delete|reassign]
  settings
  limits
  sub         [-create priceID | -cancel | -reactivate]
  sync
`)
	os.Exit(2)
}

// main dispatches subcommands over the wired service registry.
func main() {
	cfgPath := flag.String("config", config.DefaultPath(), "config file")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	if cmd == "version" {
		fmt.Printf("utodo %s (%s)\n", version, buildDate)
		return
	}

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	reg, err := service.NewRegistry(ctx, cfg, logger)
	if err != nil {
		fail(err)
	}
	defer func() { _ = reg.Close() }()

	switch cmd {

	case "register", "login":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)
		if *email == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "need -email and -password")
			os.Exit(1)
		}
		creds := model.Credentials{Email: *email, Password: *password}
		var user model.User
		if cmd == "register" {
			user, err = reg.Auth.Register(ctx, creds)
		} else {
			user, err = reg.Auth.Login(ctx, creds)
		}
		if err != nil {
			fail(err)
		}
		printJSON(user)

	case "logout":
		if err := reg.Auth.Logout(ctx); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "profile":
		user, err := reg.Auth.Profile(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(user)

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		page := fs.Int("page", 1, "page")
		limit := fs.Int("limit", 50, "page size")
		search := fs.String("search", "", "substring search")
		status := fs.String("status", "", "status filter")
		_ = fs.Parse(args)
		out, err := reg.Todos.List(ctx, model.TodoQuery{
			Page: *page, Limit: *limit, Search: *search, Status: *status,
		})
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		title := fs.String("title", "", "title")
		desc := fs.String("desc", "", "description")
		status := fs.String("status", "", "status id")
		priority := fs.Int("priority", 0, "priority")
		due := fs.String("due", "", "due date (RFC3339)")
		_ = fs.Parse(args)
		in := model.CreateTodo{
			Title: *title, Description: *desc, Status: *status, Priority: *priority,
		}
		if *due != "" {
			ts, err := time.Parse(time.RFC3339, *due)
			if err != nil {
				fail(fmt.Errorf("bad -due: %w", err))
			}
			in.DueDate = &ts
		}
		todo, err := reg.Todos.Create(ctx, in)
		if err != nil {
			fail(err)
		}
		printJSON(todo)

	case "done":
		id := oneID(args)
		completed := true
		todo, err := reg.Todos.Update(ctx, id, model.UpdateTodo{IsCompleted: &completed})
		if err != nil {
			fail(err)
		}
		printJSON(todo)

	case "rm":
		id := oneID(args)
		if err := reg.Todos.Delete(ctx, id); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "mv":
		fs := flag.NewFlagSet("mv", flag.ExitOnError)
		id := fs.String("id", "", "todo id")
		status := fs.String("status", "", "target status id")
		_ = fs.Parse(args)
		if *id == "" || *status == "" {
			fmt.Fprintln(os.Stderr, "need -id and -status")
			os.Exit(1)
		}
		todo, err := reg.Todos.Update(ctx, *id, model.UpdateTodo{Status: status})
		if err != nil {
			fail(err)
		}
		printJSON(todo)

	case "bulk":
		fs := flag.NewFlagSet("bulk", flag.ExitOnError)
		ids := fs.String("ids", "", "comma-separated todo ids")
		action := fs.String("action", "", "delete|complete|incomplete|changeStatus")
		status := fs.String("status", "", "new status for changeStatus")
		_ = fs.Parse(args)
		if *ids == "" || *action == "" {
			fmt.Fprintln(os.Stderr, "need -ids and -action")
			os.Exit(1)
		}
		res, err := reg.Todos.Bulk(ctx, model.BulkRequest{
			TodoIDs:   splitIDs(*ids),
			Action:    model.BulkAction(*action),
			NewStatus: *status,
		})
		if err != nil {
			fail(err)
		}
		printJSON(res)

	case "statuses":
		s, err := reg.Settings.Get(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(s.Statuses)

	case "status-add":
		fs := flag.NewFlagSet("status-add", flag.ExitOnError)
		label := fs.String("label", "", "label")
		color := fs.String("color", "#6b7280", "hex color")
		_ = fs.Parse(args)
		status, err := reg.Statuses.Add(ctx, *label, *color)
		if err != nil {
			fail(err)
		}
		printJSON(status)

	case "status-rm":
		fs := flag.NewFlagSet("status-rm", flag.ExitOnError)
		id := fs.String("id", "", "status id")
		resolve := fs.String("resolve", "", "delete|reassign (for statuses with todos)")
		_ = fs.Parse(args)
		if *id == "" {
			fmt.Fprintln(os.Stderr, "need -id")
			os.Exit(1)
		}
		err := reg.Statuses.Delete(ctx, *id, service.Resolution(*resolve))
		var confirm *service.ConfirmationError
		if errors.As(err, &confirm) {
			fmt.Fprintf(os.Stderr, "%v\nre-run with -resolve delete|reassign\n", confirm)
			os.Exit(1)
		}
		if err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "settings":
		s, err := reg.Settings.Get(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(s)

	case "limits":
		printJSON(reg.Gate.Limits())

	case "sub":
		fs := flag.NewFlagSet("sub", flag.ExitOnError)
		create := fs.String("create", "", "price id to subscribe")
		cancel := fs.Bool("cancel", false, "cancel subscription")
		reactivate := fs.Bool("reactivate", false, "reactivate subscription")
		_ = fs.Parse(args)
		switch {
		case *create != "":
			sub, err := reg.Subscription.Create(ctx, *create)
			if err != nil {
				fail(err)
			}
			printJSON(sub)
		case *cancel:
			if err := reg.Subscription.Cancel(ctx); err != nil {
				fail(err)
			}
			fmt.Println("ok")
		case *reactivate:
			sub, err := reg.Subscription.Reactivate(ctx)
			if err != nil {
				fail(err)
			}
			printJSON(sub)
		default:
			sub, err := reg.Subscription.Status(ctx)
			if err != nil {
				fail(err)
			}
			printJSON(sub)
		}

	case "sync":
		if err := reg.Sync.SyncAll(ctx); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	default:
		usage()
	}
}

// ---- helpers ----

func oneID(args []string) string {
	fs := flag.NewFlagSet("id", flag.ExitOnError)
	id := fs.String("id", "", "todo id")
	_ = fs.Parse(args)
	if *id == "" {
		fmt.Fprintln(os.Stderr, "need -id")
		os.Exit(1)
	}
	return *id
}

func splitIDs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
