package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"quill/pkg/auth"
	"quill/pkg/backup"
	"quill/pkg/config"
	"quill/pkg/crypto"
	"quill/pkg/errors"
	"quill/pkg/handlers"
	"quill/pkg/models"
	"quill/pkg/recall"
	"quill/pkg/storage"
)

const usageText = `Usage: quill <command> [options]

Commands:
  add      Append a journal entry
  list     Print all entries
  search   Search entries (fuzzy, semantic, or hybrid)
  recap    Summarize recent weeks or months
  export   Render the journal to markdown or text
  migrate  Import legacy per-file entries
  sync     Back up the journal to the configured backend
  passwd   Enable or change the journal password
  serve    Run the local HTTP API
`

type app struct {
	cfg    *config.Config
	store  *storage.Store
	auth   *auth.Manager
	engine *recall.Engine
}

func newApp(configPath string) (*app, error) {
	cfg := config.Load(configPath)
	if err := cfg.Save(); err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.Paths.Journal)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		store:  store,
		auth:   auth.NewManager(cfg),
		engine: recall.NewEngine(cfg.Paths.Cache, recall.NewHashEmbedder(cfg.Search.EmbeddingDim)),
	}, nil
}

// cipher unlocks the journal, prompting for the password when one is set.
// With encryption disabled it returns nil and the journal stays plaintext.
func (a *app) cipher() (*crypto.Cipher, error) {
	c, err := a.auth.GetCipher("")
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.Is(errors.ErrEncryptionDisabled) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (a *app) searchOptions() recall.Options {
	return recall.Options{
		Threshold:      a.cfg.Search.FuzzyThreshold,
		DateBonus:      a.cfg.Search.DateBonus,
		FuzzyWeight:    a.cfg.Search.FuzzyWeight,
		SemanticWeight: a.cfg.Search.SemanticWeight,
	}
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	if err := run(command, args); err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			fmt.Fprintln(os.Stderr, "Error:", appErr.GetUserMessage())
			appErr.Log()
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "", "path to the config file")

	switch command {
	case "add":
		entryType := fs.String("type", string(models.EntryTypeDiary), "entry type: diary, notes, todo, quote")
		tags := fs.String("tags", "", "comma-separated tags")
		fs.Parse(args)
		return cmdAdd(*configPath, strings.Join(fs.Args(), " "), *entryType, *tags)
	case "list":
		withEncrypted := fs.Bool("include-encrypted", true, "include entries that could not be decrypted")
		fs.Parse(args)
		return cmdList(*configPath, *withEncrypted)
	case "search":
		mode := fs.String("mode", "hybrid", "search mode: fuzzy, semantic, hybrid")
		limit := fs.Int("limit", 5, "maximum number of results")
		fs.Parse(args)
		return cmdSearch(*configPath, strings.Join(fs.Args(), " "), *mode, *limit)
	case "recap":
		period := fs.String("period", recall.PeriodWeek, "recap period: week or month")
		fs.Parse(args)
		return cmdRecap(*configPath, *period)
	case "export":
		format := fs.String("format", storage.FormatMarkdown, "export format: markdown or text")
		out := fs.String("out", "journal-export.md", "destination file")
		fs.Parse(args)
		return cmdExport(*configPath, *out, *format)
	case "migrate":
		fs.Parse(args)
		return cmdMigrate(*configPath)
	case "sync":
		backend := fs.String("backend", "", "override the configured backend: local, s3, webdav")
		overwrite := fs.Bool("allow-overwrite", false, "replace an existing destination")
		dryRun := fs.Bool("dry-run", false, "show what would happen without uploading")
		fs.Parse(args)
		return cmdSync(*configPath, *backend, *overwrite, *dryRun)
	case "passwd":
		fs.Parse(args)
		return cmdPasswd(*configPath)
	case "serve":
		addr := fs.String("addr", "127.0.0.1:8080", "listen address")
		fs.Parse(args)
		return cmdServe(*configPath, *addr)
	default:
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdAdd(configPath, content, entryType, tags string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("nothing to add: pass the entry text as arguments")
	}
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.store.Close()

	cipher, err := a.cipher()
	if err != nil {
		return err
	}

	var tagList []string
	if tags != "" {
		tagList = strings.Split(tags, ",")
	}
	entry, err := a.store.Add(content, models.EntryType(entryType), storage.AddOptions{
		Tags:   tagList,
		Cipher: cipher,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Added %s entry %s\n", entry.EntryType, entry.Identifier)
	return nil
}

func cmdList(configPath string, includeEncrypted bool) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.store.Close()

	cipher, err := a.cipher()
	if err != nil {
		return err
	}

	entries := a.store.Load(cipher, includeEncrypted)
	if len(entries) == 0 {
		fmt.Println("No entries yet.")
		return nil
	}
	for _, entry := range entries {
		printEntry(entry)
	}
	return nil
}

func printEntry(entry models.Entry) {
	fmt.Printf("[%s] %s %s", entry.EntryType, entry.Date, entry.Time)
	if len(entry.Tags) > 0 {
		fmt.Printf("  (%s)", strings.Join(entry.Tags, ", "))
	}
	fmt.Println()
	if entry.Encrypted {
		fmt.Println("  (encrypted entry: no key available)")
	} else {
		fmt.Println("  " + strings.ReplaceAll(entry.Content, "\n", "\n  "))
	}
}

func cmdSearch(configPath, query, mode string, limit int) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("nothing to search for: pass the query as arguments")
	}
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.store.Close()

	cipher, err := a.cipher()
	if err != nil {
		return err
	}
	entries := a.store.Load(cipher, false)

	opts := a.searchOptions()
	opts.Limit = limit

	var hits []recall.Hit
	switch mode {
	case "fuzzy":
		hits = recall.SearchEntries(query, entries, opts)
	case "semantic":
		hits, err = a.engine.Search(query, entries, opts)
	case "hybrid":
		hits, err = a.engine.Hybrid(query, entries, opts)
	default:
		return fmt.Errorf("unknown search mode %q", mode)
	}
	if err != nil {
		return err
	}

	if len(hits) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for _, hit := range hits {
		fmt.Printf("%.2f [%s] %s %s\n", hit.Score, hit.Source, hit.Entry.Date, hit.Snippet)
	}
	return nil
}

func cmdRecap(configPath, period string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.store.Close()

	cipher, err := a.cipher()
	if err != nil {
		return err
	}
	entries := a.store.Load(cipher, false)

	recaps := recall.RecentRecaps(entries, period,
		a.cfg.Search.RecapLookbackDays,
		recall.NewFallbackSummarizer(a.cfg.Search.RecapSentences))
	if len(recaps) == 0 {
		fmt.Println("Nothing to recap yet.")
		return nil
	}
	for _, recap := range recaps {
		fmt.Printf("%s (%d entries)\n  %s\n", recap.Period, recap.Count, recap.Summary)
	}
	return nil
}

func cmdExport(configPath, out, format string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.store.Close()

	cipher, err := a.cipher()
	if err != nil {
		return err
	}
	path, err := a.store.Export(out, format, cipher)
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

func cmdMigrate(configPath string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.store.Close()

	cipher, err := a.cipher()
	if err != nil {
		return err
	}
	count, err := a.store.MigrateLegacy(cipher)
	if err != nil {
		return err
	}
	fmt.Printf("Migrated %d legacy entries\n", count)
	return nil
}

func cmdSync(configPath, backend string, allowOverwrite, dryRun bool) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.store.Close()

	cipher, err := a.cipher()
	if err != nil {
		return err
	}
	result, err := backup.Perform(context.Background(), a.cfg, a.store, cipher, backup.Options{
		Backend:        backend,
		AllowOverwrite: allowOverwrite,
		DryRun:         dryRun,
	})
	if err != nil {
		return err
	}
	if result.DryRun {
		fmt.Printf("Dry run: would upload %s to %s (%s)\n", result.Archive, result.RemoteTarget, result.Backend)
	} else {
		fmt.Printf("Backed up %s to %s (%s)\n", result.Archive, result.RemoteTarget, result.Backend)
	}
	return nil
}

func cmdPasswd(configPath string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.store.Close()
	return a.auth.SetPassword()
}

func cmdServe(configPath, addr string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}

	cipher, err := a.cipher()
	if err != nil {
		return err
	}

	api := handlers.NewAPIHandlers(a.store, a.engine, a.cfg, cipher)
	server := &http.Server{Addr: addr, Handler: api.Router()}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("Shutting down gracefully...")
		a.store.Close()
		server.Shutdown(context.Background())
	}()

	log.Printf("Serving on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
