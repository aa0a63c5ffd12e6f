package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dshills/doccontext-mcp/internal/app"
	"github.com/dshills/doccontext-mcp/internal/config"
	"github.com/dshills/doccontext-mcp/internal/format"
	"github.com/dshills/doccontext-mcp/internal/mcp"
	"github.com/dshills/doccontext-mcp/internal/storage"
	"github.com/dshills/doccontext-mcp/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const usage = `Usage: doccontext [command] [arguments]

Commands:
  serve                       Run the MCP server on stdio (default)
  seed <file|dir|glob>        Load corpus YAML files into the database
  docs [flags] <id> [topic]   Print ranked documentation for a library
  resolve <name>              Search the library catalog
  schema                      Print the JSON Schema of the json format
  --version                   Print version and build information
`

func main() {
	// Log to stderr (stdout reserved for MCP protocol and command output)
	log.SetOutput(os.Stderr)
	logger := log.New(os.Stderr, "", log.LstdFlags)

	cmd := "serve"
	var args []string
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "--version", "version":
		printVersion()
	case "serve":
		err = serve(ctx, logger)
	case "seed":
		err = seed(ctx, args, logger)
	case "docs":
		err = docs(ctx, args)
	case "resolve":
		err = resolve(ctx, args)
	case "schema":
		err = printSchema()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func printVersion() {
	fmt.Printf("DocContext MCP Server\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Build Mode: %s\n", storage.BuildMode)
	fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
}

func openApp(logger *log.Logger) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return app.New(cfg, logger)
}

func serve(ctx context.Context, logger *log.Logger) error {
	logger.Printf("DocContext MCP Server v%s starting...", version)
	logger.Printf("Build Mode: %s, Driver: %s", storage.BuildMode, storage.DriverName)

	a, err := openApp(logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	server, err := mcp.NewServer(a.Service, a.Store, a.Loader)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	loaded := make(chan struct{})
	defer func() {
		cancel()
		<-loaded
	}()

	// The server answers while the configured corpus loads; get-status
	// reports the load as in progress.
	go func() {
		defer close(loaded)
		if _, err := a.LoadConfiguredCorpus(ctx); err != nil {
			logger.Printf("corpus: %v", err)
		}
	}()

	logger.Println("MCP server ready, listening on stdio...")
	err = server.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Println("Server stopped")
	return nil
}

func seed(ctx context.Context, args []string, logger *log.Logger) error {
	if len(args) != 1 {
		return errors.New("expected exactly one path")
	}

	a, err := openApp(logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	stats, err := a.Loader.Load(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Files:     %d\n", stats.Files)
	fmt.Printf("Libraries: %d\n", stats.Libraries)
	fmt.Printf("Snippets:  %d\n", stats.Snippets)
	fmt.Printf("Failed:    %d\n", stats.Failed)
	for _, e := range stats.Errors {
		fmt.Printf("  %s\n", e)
	}
	fmt.Printf("Duration:  %s\n", stats.Duration)
	return nil
}

func docs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("docs", flag.ContinueOnError)
	limit := fs.Int("limit", 0, "maximum snippets (0 uses the configured default)")
	tokens := fs.Int("tokens", 0, "approximate token budget (0 is unlimited)")
	formatName := fs.String("format", string(types.FormatText), "output format: txt or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("expected a library id")
	}

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	query := types.Query{
		Topic:  strings.Join(fs.Args()[1:], " "),
		Limit:  *limit,
		Tokens: *tokens,
	}
	resp, err := a.Service.GetDocs(ctx, fs.Arg(0), query, *formatName)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(resp.Payload)
	return err
}

func resolve(ctx context.Context, args []string) error {
	name := strings.Join(args, " ")

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	matches, err := a.Service.Search(ctx, name, 0)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Printf("No libraries match %q\n", name)
		return nil
	}
	for _, m := range matches {
		fmt.Printf("/%s\t%s\tquality=%.2f\tsnippets=%d", m.ID, m.Title, m.QualityScore, m.TotalSnippets)
		if len(m.Versions) > 0 {
			fmt.Printf("\tversions=%s", strings.Join(m.Versions, ","))
		}
		fmt.Println()
	}
	return nil
}

func printSchema() error {
	schema, err := format.Schema()
	if err != nil {
		return err
	}
	fmt.Println(string(schema))
	return nil
}
