// CLAUDE:SUMMARY CLI entry point for surgeon: put/import/apply/rollback/clear/show on stored documents, and serve (HTTP + MCP).
// Command surgeon edits stored HTML documents with audited, reversible changes.
//
// Usage:
//
//	surgeon -db surgeon.db put -doc page < page.html
//	surgeon -db surgeon.db apply -doc page -css "div.note" -change add_css_class=callout -change replace_tag_name=aside
//	surgeon -db surgeon.db rollback -doc page -change-set <id>
//	surgeon -db surgeon.db clear -doc page
//	surgeon -db surgeon.db show -doc page -format html|json|markdown|journal|audit
//	surgeon -db surgeon.db import -doc page -url https://example.com
//	surgeon -config surgeon.yaml serve
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/surgeon/audit"
	"github.com/hazyhaar/surgeon/config"
	"github.com/hazyhaar/surgeon/fetch"
	"github.com/hazyhaar/surgeon/kit"
	"github.com/hazyhaar/surgeon/mcpquic"
	"github.com/hazyhaar/surgeon/shield"
	"github.com/hazyhaar/surgeon/store"
	"github.com/hazyhaar/surgeon/surgeon"
	"github.com/hazyhaar/surgeon/surgery"
)

const usage = "usage: surgeon [-config file] [-db path] [-log-level level] <put|import|apply|rollback|clear|show|types|serve> [flags]"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		slog.Error("surgeon: fatal", "error", err)
		os.Exit(1)
	}
}

// app holds what every subcommand needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	svc    *surgery.Service
	stdin  io.Reader
	stdout io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("surgeon", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to surgeon.yaml config file")
	dbPath := fs.String("db", "", "path to SQLite database (overrides config)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New(usage)
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	a := &app{cfg: cfg, logger: logger, store: st, stdin: stdin, stdout: stdout}
	fetcher, closeFetcher := a.newFetcher()
	defer closeFetcher()
	a.svc = surgery.New(st, surgery.Config{
		Audit:        cfg.AuditEnabled(),
		FullDocument: cfg.FullDocument,
		Sanitize:     cfg.Sanitize,
	}, surgery.WithLogger(logger), surgery.WithFetcher(fetcher))

	ctx = kit.WithTransport(ctx, "cli")
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "put":
		return a.put(ctx, rest)
	case "import":
		return a.importURL(ctx, rest)
	case "apply":
		return a.apply(ctx, rest)
	case "rollback":
		return a.rollback(ctx, rest)
	case "clear":
		return a.clear(ctx, rest)
	case "show":
		return a.show(ctx, rest)
	case "types":
		return a.printJSON(a.svc.ChangeTypes())
	case "serve":
		return a.serve(ctx, rest)
	}
	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

func (a *app) newFetcher() (*fetch.Fetcher, func()) {
	opts := []fetch.Option{
		fetch.WithUserAgent(a.cfg.Fetch.UserAgent),
		fetch.WithTimeout(a.cfg.Fetch.Timeout),
		fetch.WithLogger(a.logger),
	}
	if a.cfg.Fetch.AllowPrivate {
		opts = append(opts, fetch.WithAllowPrivate())
	}
	if !a.cfg.Fetch.Browser {
		return fetch.New(opts...), func() {}
	}
	b := fetch.NewBrowser(fetch.BrowserConfig{RemoteURL: a.cfg.Fetch.RemoteURL, Logger: a.logger})
	return fetch.New(append(opts, fetch.WithRenderer(b))...), func() { b.Close() }
}

func (a *app) put(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	doc := fs.String("doc", "", "document id")
	file := fs.String("file", "", "HTML file to store (default: stdin)")
	full := fs.Bool("full", a.cfg.FullDocument, "parse as a full document")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var markup []byte
	var err error
	if *file != "" {
		markup, err = os.ReadFile(*file)
	} else {
		markup, err = io.ReadAll(a.stdin)
	}
	if err != nil {
		return fmt.Errorf("put: read: %w", err)
	}

	d, err := a.svc.Put(ctx, &surgery.PutRequest{DocumentID: *doc, Markup: string(markup), Full: full})
	if err != nil {
		return err
	}
	d.Markup = ""
	return a.printJSON(d)
}

func (a *app) importURL(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	doc := fs.String("doc", "", "document id")
	url := fs.String("url", "", "page to fetch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d, err := a.svc.Import(ctx, *doc, *url)
	if err != nil {
		return err
	}
	d.Markup = ""
	return a.printJSON(d)
}

func (a *app) apply(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	doc := fs.String("doc", "", "document id")
	css := fs.String("css", "", "CSS selector")
	xpath := fs.String("xpath", "", "XPath expression")
	id := fs.String("id", "", "change-set id (default: random)")
	preview := fs.Bool("preview", false, "print the resulting markup without saving")
	var changeArgs, selects, rejects stringList
	fs.Var(&changeArgs, "change", "type=arg, repeatable, applied in order")
	fs.Var(&selects, "select", "CSS filter a node must match, repeatable")
	fs.Var(&rejects, "reject", "CSS filter a node must not match, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := &surgery.ApplyRequest{
		DocumentID:  *doc,
		Selector:    *css,
		ChangeSetID: *id,
		Select:      selects,
		Reject:      rejects,
	}
	if *xpath != "" {
		if *css != "" {
			return errors.New("apply: -css and -xpath are exclusive")
		}
		req.Selector, req.Mode = *xpath, "xpath"
	}
	for _, c := range changeArgs {
		spec, err := parseChange(c)
		if err != nil {
			return err
		}
		req.Changes = append(req.Changes, spec)
	}

	if *preview {
		res, err := a.svc.Preview(ctx, req)
		if err != nil {
			return err
		}
		_, err = io.WriteString(a.stdout, res.Markup+"\n")
		return err
	}
	res, err := a.svc.Apply(ctx, req)
	if err != nil {
		return err
	}
	return a.printJSON(res)
}

func (a *app) rollback(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ContinueOnError)
	req := &surgery.RollbackRequest{}
	fs.StringVar(&req.DocumentID, "doc", "", "document id")
	fs.StringVar(&req.ChangeSetID, "change-set", "", "revert only this change set")
	fs.StringVar(&req.ChangedAt, "at", "", "revert only records stamped at this RFC 3339 instant")
	fs.StringVar(&req.ChangedFrom, "from", "", "revert only records stamped at or after this RFC 3339 instant")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.svc.Rollback(ctx, req)
	if err != nil {
		return err
	}
	return a.printJSON(res)
}

func (a *app) clear(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	doc := fs.String("doc", "", "document id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	res, err := a.svc.ClearAudit(ctx, *doc)
	if err != nil {
		return err
	}
	return a.printJSON(res)
}

// auditEntry is one node trail as printed by show -format audit.
type auditEntry struct {
	Tag     string         `json:"tag"`
	Records []audit.Record `json:"records"`
}

func (a *app) show(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	doc := fs.String("doc", "", "document id")
	format := fs.String("format", "html", "html | json | markdown | journal | audit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch *format {
	case "markdown":
		md, err := a.svc.Markdown(ctx, *doc)
		if err != nil {
			return err
		}
		_, err = io.WriteString(a.stdout, md+"\n")
		return err
	case "journal":
		ops, err := a.svc.Journal(ctx, *doc)
		if err != nil {
			return err
		}
		return a.printJSON(ops)
	}

	d, err := a.svc.Get(ctx, *doc)
	if err != nil {
		return err
	}
	switch *format {
	case "html":
		_, err = io.WriteString(a.stdout, d.Markup+"\n")
		return err
	case "json":
		return a.printJSON(d)
	case "audit":
		sess, err := surgeon.New(d.Markup, surgeon.WithFullDocument(d.Full))
		if err != nil {
			return err
		}
		trails, terr := sess.Trails()
		out := make([]auditEntry, 0, len(trails))
		for _, tr := range trails {
			out = append(out, auditEntry{Tag: tr.Node.Data, Records: tr.Records})
		}
		if err := a.printJSON(out); err != nil {
			return err
		}
		return terr
	}
	return fmt.Errorf("show: unknown format %q", *format)
}

func (a *app) serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", a.cfg.Listen, "HTTP listen address")
	quicAddr := fs.String("mcp-quic", "", "MCP-over-QUIC listen address (empty = disabled)")
	certFile := fs.String("tls-cert", "", "TLS certificate for MCP-over-QUIC (default: self-signed)")
	keyFile := fs.String("tls-key", "", "TLS key for MCP-over-QUIC")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "surgeon", Version: "1.0.0"}, nil)
	a.svc.RegisterMCP(mcpSrv)

	if *quicAddr != "" {
		tlsCfg, err := mcpquic.SelfSignedTLSConfig()
		if *certFile != "" && *keyFile != "" {
			tlsCfg, err = mcpquic.ServerTLSConfig(*certFile, *keyFile)
		}
		if err != nil {
			return fmt.Errorf("serve: mcp tls: %w", err)
		}
		ql, err := mcpquic.NewListener(*quicAddr, tlsCfg, mcpSrv, a.logger)
		if err != nil {
			return fmt.Errorf("serve: mcp quic: %w", err)
		}
		defer ql.Close()
		go func() {
			if err := ql.Serve(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("surgeon: mcp quic", "error", err)
			}
		}()
	}

	if err := shield.Init(ctx, a.store.DB); err != nil {
		return err
	}
	limiter := shield.NewRateLimiter(a.store.DB, a.logger)
	if err := limiter.Reload(ctx); err != nil {
		return err
	}
	limiter.StartReloader(ctx, time.Minute)

	srv := &http.Server{
		Addr:              *listen,
		Handler:           a.svc.Router(limiter.Middleware),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		a.logger.Info("surgeon: serving", "addr", *listen, "db", a.cfg.DBPath, "audit", a.cfg.AuditEnabled())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("surgeon: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// parseChange splits "type=arg".
func parseChange(s string) (surgery.ChangeSpec, error) {
	typ, arg, ok := strings.Cut(s, "=")
	if !ok || typ == "" {
		return surgery.ChangeSpec{}, fmt.Errorf("change %q: want type=arg", s)
	}
	return surgery.ChangeSpec{Type: typ, Arg: arg}, nil
}

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }
