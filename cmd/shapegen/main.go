package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hanpama/shapegen/internal/config"
	"github.com/hanpama/shapegen/internal/eventbus"
	"github.com/hanpama/shapegen/internal/ir"
	"github.com/hanpama/shapegen/internal/language"
	"github.com/hanpama/shapegen/internal/logging"
	"github.com/hanpama/shapegen/internal/otel"
	"github.com/hanpama/shapegen/internal/schema"
	"github.com/hanpama/shapegen/internal/server"
)

const rootUsage = `shapegen - GraphQL response shape compiler

USAGE:
  shapegen <command> [flags]

COMMANDS:
  compile          Compile operations and fragments into shape trees (JSON)
  serve            Run the HTTP compile endpoint (POST /compile)
  help             Show help for any command

Every command reads shapegen.yaml (or -config) and SHAPEGEN_* environment
variables; flags override both.
`

const compileUsage = `compile FLAGS:
  -config <file>          Config file (default: shapegen.yaml when present)
  -schema <file>          GraphQL SDL file (required)
  -documents <dir>        Directory searched for .graphql/.gql documents (default: .)
  -exclude <path>         Skip a file under -documents. Repeatable
  -unit <name>            Compile only the named operation or fragment. Repeatable
  -validate               Run the standard validation rules before compiling
  -concurrency N          Units compiled in parallel (default: GOMAXPROCS)
  -downcasts              Include a downcast table per object field
  -pretty                 Indent the JSON output
  -out <file>             Write JSON to file (default: stdout)
  (Exits non-zero when any unit fails)
`

const serveUsage = `serve FLAGS:
  -config <file>                 Config file (default: shapegen.yaml when present)
  -schema <file>                 GraphQL SDL file (required)
  -validate                      Validate request documents before compiling
  -concurrency N                 Units compiled in parallel per request
  -server.addr <addr>            HTTP listen address (default: localhost:8080)
  -server.pretty                 Pretty-print JSON responses
  -server.timeout <duration>     Per-request timeout, e.g. 10s (default: 10s)
  -server.cache-size N           Compile results kept in memory (default: 256)
  -server.cors-origin <origin>   Allow a CORS origin. Repeatable
  -otel.endpoint <addr>          OTLP collector endpoint
  -otel.service <name>           OpenTelemetry service name (default: shapegen)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("shapegen", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "compile":
		return cmdCompile(cmdArgs)
	case "serve":
		return cmdServe(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "compile":
		fmt.Print(compileUsage)
	case "serve":
		fmt.Print(serveUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// loadConfig reads the config file and environment, then applies the flags
// that were set explicitly on fs.
func loadConfig(fs *flag.FlagSet, path string, set map[string]func(*config.Config)) (*config.Config, error) {
	res, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := res.Config
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply(&cfg)
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(!cfg.JSONLog, cfg.DevelopmentMode, level), nil
}

// loadSchema returns both the gqlparser schema, used for validation, and the
// compiler's type graph.
func loadSchema(path string) (*language.Schema, *schema.Schema, error) {
	sdl, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read schema: %w", err)
	}
	src, err := language.LoadSchema(path, string(sdl))
	if err != nil {
		return nil, nil, fmt.Errorf("load schema: %w", err)
	}
	sch, err := schema.BuildFromAST(src)
	if err != nil {
		return nil, nil, fmt.Errorf("build schema: %w", err)
	}
	return src, sch, nil
}

type compileOutput struct {
	*ir.Result
	// Downcasts maps unit name and response path to the downcast table of
	// each object field selection.
	Downcasts map[string]map[string]*ir.DowncastTable `json:"downcasts,omitempty"`
}

func cmdCompile(args []string) error {
	var (
		configPath  string
		flags       config.Config
		exclude     stringListFlag
		units       stringListFlag
		downcasts   bool
		outFile     string
		concurrency int
	)
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&configPath, "config", "", "Config file")
	fs.StringVar(&flags.Schema, "schema", "", "GraphQL SDL file")
	fs.StringVar(&flags.Documents.Dir, "documents", "", "Document directory")
	fs.Var(&exclude, "exclude", "Skip a file under -documents")
	fs.Var(&units, "unit", "Compile only the named unit")
	fs.BoolVar(&flags.Compile.Validate, "validate", false, "Validate documents")
	fs.IntVar(&concurrency, "concurrency", 0, "Units compiled in parallel")
	fs.BoolVar(&downcasts, "downcasts", false, "Include downcast tables")
	fs.BoolVar(&flags.Compile.Pretty, "pretty", false, "Indent the JSON output")
	fs.StringVar(&outFile, "out", "", "Write JSON to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, compileUsage)
		return err
	}
	cfg, err := loadConfig(fs, configPath, map[string]func(*config.Config){
		"schema":      func(c *config.Config) { c.Schema = flags.Schema },
		"documents":   func(c *config.Config) { c.Documents.Dir = flags.Documents.Dir },
		"exclude":     func(c *config.Config) { c.Documents.Exclude = exclude },
		"validate":    func(c *config.Config) { c.Compile.Validate = flags.Compile.Validate },
		"concurrency": func(c *config.Config) { c.Compile.Concurrency = concurrency },
		"pretty":      func(c *config.Config) { c.Compile.Pretty = flags.Compile.Pretty },
	})
	if err != nil {
		fmt.Fprint(os.Stderr, compileUsage)
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	src, sch, err := loadSchema(cfg.Schema)
	if err != nil {
		return err
	}
	ctx := context.Background()
	exclude = append(stringListFlag(nil), cfg.Documents.Exclude...)
	if abs, err := filepath.Abs(cfg.Schema); err == nil {
		exclude = append(exclude, abs)
	}
	doc, err := ir.LoadDir(ctx, cfg.Documents.Dir, exclude...)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	if cfg.Compile.Validate {
		if verr := ir.ValidationErrorFromList(language.ValidateDocument(src, doc)); verr != nil {
			return verr
		}
	}

	opts := []ir.Option{ir.WithLogger(logger)}
	if cfg.Compile.Concurrency > 0 {
		opts = append(opts, ir.WithConcurrency(cfg.Compile.Concurrency))
	}
	if len(units) > 0 {
		opts = append(opts, ir.WithUnits(units...))
	}
	res, err := ir.Compile(ctx, sch, doc, opts...)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	for _, d := range res.Diagnostics() {
		logger.Warn(d.Message, zap.String("kind", string(d.Kind)), zap.String("location", d.Location().String()))
	}

	out := compileOutput{Result: res}
	if downcasts {
		out.Downcasts = downcastTables(res)
	}
	var data []byte
	if cfg.Compile.Pretty {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	data = append(data, '\n')
	if outFile == "" {
		_, err = os.Stdout.Write(data)
	} else {
		err = os.WriteFile(outFile, data, 0644)
	}
	if err != nil {
		return err
	}
	return res.Err()
}

func downcastTables(res *ir.Result) map[string]map[string]*ir.DowncastTable {
	out := make(map[string]map[string]*ir.DowncastTable)
	for _, u := range res.Units {
		if u.Root == nil {
			continue
		}
		tables := make(map[string]*ir.DowncastTable)
		var visit func(s *ir.Shape, prefix string)
		visit = func(s *ir.Shape, prefix string) {
			s.Walk(func(shape *ir.Shape) {
				for _, f := range shape.Fields {
					if f.Selection == nil {
						continue
					}
					key := f.ResponseKey
					if prefix != "" {
						key = prefix + "." + key
					}
					// the least narrowed shape of a position is seen first
					if _, ok := tables[key]; ok {
						continue
					}
					tables[key] = ir.BuildDowncastTable(f.Selection)
					visit(f.Selection, key)
				}
			})
		}
		visit(u.Root, "")
		out[u.Name] = tables
	}
	return out
}

func cmdServe(args []string) error {
	var (
		configPath  string
		flags       config.Config
		corsOrigins stringListFlag
	)
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&configPath, "config", "", "Config file")
	fs.StringVar(&flags.Schema, "schema", "", "GraphQL SDL file")
	fs.BoolVar(&flags.Compile.Validate, "validate", false, "Validate request documents")
	fs.IntVar(&flags.Compile.Concurrency, "concurrency", 0, "Units compiled in parallel per request")
	fs.StringVar(&flags.Server.ListenAddr, "server.addr", "", "HTTP listen address")
	fs.BoolVar(&flags.Compile.Pretty, "server.pretty", false, "Pretty-print JSON responses")
	fs.DurationVar(&flags.Server.Timeout, "server.timeout", 0, "Per-request timeout")
	fs.IntVar(&flags.Server.CacheSize, "server.cache-size", 0, "Compile results kept in memory")
	fs.Var(&corsOrigins, "server.cors-origin", "Allow a CORS origin")
	fs.StringVar(&flags.Telemetry.OTLPEndpoint, "otel.endpoint", "", "OTLP collector endpoint")
	fs.StringVar(&flags.Telemetry.ServiceName, "otel.service", "", "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}
	cfg, err := loadConfig(fs, configPath, map[string]func(*config.Config){
		"schema":             func(c *config.Config) { c.Schema = flags.Schema },
		"validate":           func(c *config.Config) { c.Compile.Validate = flags.Compile.Validate },
		"concurrency":        func(c *config.Config) { c.Compile.Concurrency = flags.Compile.Concurrency },
		"server.addr":        func(c *config.Config) { c.Server.ListenAddr = flags.Server.ListenAddr },
		"server.pretty":      func(c *config.Config) { c.Compile.Pretty = flags.Compile.Pretty },
		"server.timeout":     func(c *config.Config) { c.Server.Timeout = flags.Server.Timeout },
		"server.cache-size":  func(c *config.Config) { c.Server.CacheSize = flags.Server.CacheSize },
		"server.cors-origin": func(c *config.Config) { c.Server.CORSOrigins = corsOrigins },
		"otel.endpoint":      func(c *config.Config) { c.Telemetry.OTLPEndpoint = flags.Telemetry.OTLPEndpoint },
		"otel.service":       func(c *config.Config) { c.Telemetry.ServiceName = flags.Telemetry.ServiceName },
	})
	if err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	src, sch, err := loadSchema(cfg.Schema)
	if err != nil {
		return err
	}

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	sopts := []server.Option{
		server.WithLogger(logger),
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithCacheSize(cfg.Server.CacheSize),
		server.WithConcurrency(cfg.Compile.Concurrency),
	}
	if cfg.Compile.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	if cfg.Compile.Validate {
		sopts = append(sopts, server.WithValidation(src))
	}
	h, err := server.New(sch, sopts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/compile", h)
	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("compile server listening", zap.String("addr", cfg.Server.ListenAddr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
