package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/inboxd/inboxd/internal/config"
	"github.com/inboxd/inboxd/internal/gmail"
	"github.com/inboxd/inboxd/internal/label"
	"github.com/inboxd/inboxd/internal/services"
	"github.com/inboxd/inboxd/internal/store"
	"github.com/inboxd/inboxd/internal/version"
	"github.com/inboxd/inboxd/pkg/auth"
)

func main() {
	configPathFlag := flag.String("config", "", "Path to JSON configuration file (default: ~/.config/inboxd/config.json)")
	credPathFlag := flag.String("credentials", "", "Path to OAuth client credentials JSON (default: ~/.config/inboxd/credentials.json)")
	offlineFlag := flag.Bool("offline", false, "Run against the local store only, without a Gmail connection")
	versionFlag := flag.Bool("version", false, "Show version information and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\n", version.GetVersionString())
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s [options] <command> [args]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  list <view> [tab] [page]     List a mailbox view (inbox, starred, important, sent, draft, all, spam, trash)\n")
		fmt.Fprintf(os.Stderr, "  counts                       Show unread counters per view\n")
		fmt.Fprintf(os.Stderr, "  action <id> <name> [label]   Run one label action on one email\n")
		fmt.Fprintf(os.Stderr, "  bulk <name> [label] <id...>  Run one label action on many emails\n")
		fmt.Fprintf(os.Stderr, "  undo                         Revert the last label action\n")
		fmt.Fprintf(os.Stderr, "  sync                         Reconcile the local store against Gmail once\n")
		fmt.Fprintf(os.Stderr, "  watch                        Reconcile on the configured interval until interrupted\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fmt.Fprintf(os.Stderr, "  --config string        Path to JSON configuration file\n")
		fmt.Fprintf(os.Stderr, "  --credentials string   Path to OAuth client credentials JSON\n")
		fmt.Fprintf(os.Stderr, "  --offline              Local store only, no Gmail connection\n")
		fmt.Fprintf(os.Stderr, "  --version              Show version information and exit\n\n")
		fmt.Fprintf(os.Stderr, "Environment Variables:\n")
		fmt.Fprintf(os.Stderr, "  INBOXD_CONFIG       Override default config file path\n")
		fmt.Fprintf(os.Stderr, "  INBOXD_CREDENTIALS  Override default credentials file path\n")
		fmt.Fprintf(os.Stderr, "  INBOXD_TOKEN        Override default token file path\n")
		fmt.Fprintf(os.Stderr, "  INBOXD_DATABASE     Override default mail store path\n")
	}

	flag.Parse()

	if *versionFlag {
		fmt.Println(version.GetDetailedVersionString())
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	configPath := *configPathFlag
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("could not load configuration: %v", err)
	}
	if *credPathFlag != "" {
		cfg.Credentials = *credPathFlag
	}

	logger := setupLogger(cfg.LogFile)
	ctx := context.Background()

	app, err := newApp(ctx, cfg, *offlineFlag, logger)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.close()

	if err := app.run(ctx, flag.Args()); err != nil {
		log.Fatalf("%v", err)
	}
}

func setupLogger(logFile string) *log.Logger {
	if logFile == "" {
		return nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		log.Printf("Warning: could not open log file %s: %v", logFile, err)
		return nil
	}
	return log.New(f, "", log.LstdFlags)
}

// app holds the wired service graph.
type app struct {
	cfg     *config.Config
	store   *store.Store
	actions *services.ActionServiceImpl
	bulk    *services.BulkActionServiceImpl
	views   *services.ViewServiceImpl
	sync    *services.SyncServiceImpl
	undo    *services.UndoServiceImpl
}

func newApp(ctx context.Context, cfg *config.Config, offline bool, logger *log.Logger) (*app, error) {
	mailStore, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open mail store: %w", err)
	}

	var provider services.Provider
	if !offline {
		service, err := auth.NewGmailService(ctx, cfg.Credentials, cfg.Token,
			gmailapi.GmailModifyScope)
		if err != nil {
			log.Printf("Warning: Gmail connection unavailable, running offline: %v", err)
		} else {
			provider = gmail.NewClient(service)
		}
	}

	cache := services.NewStateCache()
	actions := services.NewActionService(mailStore, provider, cache)
	undo := services.NewUndoService(mailStore, provider, cache)
	actions.SetUndoService(undo)
	bulk := services.NewBulkActionService(actions, mailStore)
	bulk.SetUndoService(undo)
	views := services.NewViewService(mailStore, cache, cfg.List.PageSize)
	views.SetMaxPageSize(cfg.List.SnapshotSize)
	syncSvc := services.NewSyncService(mailStore, provider, cfg.Sync.MaxPull)

	if logger != nil {
		actions.SetLogger(logger)
		bulk.SetLogger(logger)
		views.SetLogger(logger)
		syncSvc.SetLogger(logger)
		undo.SetLogger(logger)
	}

	return &app{
		cfg:     cfg,
		store:   mailStore,
		actions: actions,
		bulk:    bulk,
		views:   views,
		sync:    syncSvc,
		undo:    undo,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Printf("Warning: closing mail store: %v", err)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "list":
		return a.runList(ctx, args[1:])
	case "counts":
		return a.runCounts(ctx)
	case "action":
		return a.runAction(ctx, args[1:])
	case "bulk":
		return a.runBulk(ctx, args[1:])
	case "undo":
		return a.runUndo(ctx)
	case "sync":
		return a.runSync(ctx)
	case "watch":
		return a.runWatch(ctx)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (a *app) runList(ctx context.Context, args []string) error {
	req := services.ViewRequest{Key: label.ViewInbox}
	if len(args) > 0 {
		req.Key = label.ViewKey(args[0])
	}
	if len(args) > 1 {
		if page, err := strconv.Atoi(args[len(args)-1]); err == nil {
			req.Page = page
			args = args[:len(args)-1]
		}
	}
	if len(args) > 1 {
		req.Tab = label.Tab(args[1])
	}

	page, err := a.views.ListView(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("%s (page %d/%d, %d total)\n", req.Key, page.Page, page.TotalPages, page.TotalCount)
	for _, e := range page.Emails {
		marker := " "
		if !e.Read() {
			marker = "*"
		}
		star := " "
		if e.Starred() {
			star = "★"
		}
		fmt.Printf("%s%s %5d  %-30.30s  %s\n", marker, star, e.ID, e.Sender, e.Subject)
	}
	return nil
}

func (a *app) runCounts(ctx context.Context) error {
	counts, err := a.views.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("inbox unread:   %d\n", counts.Inbox)
	for _, tab := range []label.Tab{label.TabPrimary, label.TabSocial, label.TabPromotions, label.TabUpdates, label.TabForums} {
		fmt.Printf("  %-12s  %d\n", tab, counts.Tabs[tab])
	}
	fmt.Printf("starred unread: %d\n", counts.Starred)
	fmt.Printf("spam unread:    %d\n", counts.Spam)
	fmt.Printf("trash total:    %d\n", counts.Trash)
	return nil
}

func (a *app) runAction(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: action <id> <name> [label]")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid email id %q", args[0])
	}
	params := label.Params{}
	if len(args) > 2 {
		params.Label = args[2]
	}

	updated, err := a.actions.Execute(ctx, id, label.Action(args[1]), params)
	if err != nil {
		return err
	}
	if updated == nil {
		fmt.Printf("email %d deleted\n", id)
		return nil
	}
	fmt.Printf("email %d: %v\n", id, updated.Labels.Slice())
	return nil
}

func (a *app) runBulk(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: bulk <name> [label] <id...>")
	}
	action := label.Action(args[0])
	args = args[1:]

	params := label.Params{}
	if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
		params.Label = args[0]
		args = args[1:]
	}

	var ids []int64
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid email id %q", arg)
		}
		ids = append(ids, id)
	}

	result, err := a.bulk.ExecuteBulk(ctx, ids, action, params)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d ok, %d failed of %d\n", action, len(result.Succeeded), len(result.Failed), result.Requested)
	for _, id := range result.Failed {
		fmt.Printf("  %d: %v\n", id, result.Errors[id])
	}
	return nil
}

func (a *app) runUndo(ctx context.Context) error {
	result, err := a.undo.UndoLastAction(ctx)
	if err != nil {
		return err
	}
	fmt.Println(result.Description)
	for _, e := range result.Errors {
		fmt.Printf("  %s\n", e)
	}
	return nil
}

func (a *app) runSync(ctx context.Context) error {
	result, err := a.sync.Sync(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("sync: pulled %d, imported %d, reconciled %d, pushed %d\n",
		result.Pulled, result.Imported, result.Reconciled, result.Pushed)
	return nil
}

// runWatch syncs on the configured interval until interrupted. Each pass is
// idempotent, so a failed pass is reported and the next one retries.
func (a *app) runWatch(ctx context.Context) error {
	if !a.cfg.Sync.Enabled {
		return fmt.Errorf("sync is disabled in the configuration")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := a.cfg.GetSyncInterval()
	fmt.Printf("watching, sync every %s\n", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := a.runSync(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "sync failed: %v\n", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
