// Command planrun loads a PLEXIL plan (and its LibraryNode dependencies),
// activates it, and drives it to quiescence, optionally persisting the
// transition trace to Postgres and/or streaming it live over websocket.
package main

import (
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

	"github.com/arclight-systems/planexec"
	"github.com/arclight-systems/planexec/internal/config"
	"github.com/arclight-systems/planexec/internal/telemetry"
)

func main() {
	var (
		planPath     = flag.String("plan", "", "path to the top-level PLEXIL plan XML file")
		libraryPaths stringList
		planID       = flag.String("plan-id", "", "identifier tagged onto telemetry for this run (defaults to -plan's base name)")
	)
	flag.Var(&libraryPaths, "library", "path to a LibraryNode plan XML file; may be repeated")
	flag.Parse()

	if *planPath == "" {
		fmt.Fprintln(os.Stderr, "planrun: -plan is required")
		os.Exit(2)
	}
	if *planID == "" {
		*planID = filepath.Base(*planPath)
	}

	cfg := config.Load()
	log := telemetry.NewLogger(cfg.LogLevel == "debug")

	observers := telemetry.MultiObserver{&telemetry.LoggingObserver{Log: log}}

	if cfg.AuditDSN != "" {
		store := telemetry.NewAuditStore(cfg.AuditDSN)
		if err := store.InitSchema(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to initialize audit schema")
			os.Exit(1)
		}
		observers = append(observers, store)
		log.Info().Msg("audit persistence enabled")
	}

	var hub *telemetry.Hub
	if cfg.TracePort != 0 {
		var auth telemetry.Authenticator
		if cfg.TraceJWTSecret != "" {
			auth = telemetry.NewJWTAuth(cfg.TraceJWTSecret)
		}
		hub = telemetry.NewHub(auth)
		observers = append(observers, hub)
	}

	engine := planexec.NewEngine(planexec.EngineConfig{
		PlanID:   *planID,
		Observer: observers,
		Log:      log,
	})

	for _, path := range libraryPaths {
		f, err := os.Open(path)
		if err != nil {
			log.Error().Err(err).Str("library", path).Msg("failed to open library plan")
			os.Exit(1)
		}
		err = engine.LoadLibrary(f)
		f.Close()
		if err != nil {
			log.Error().Err(err).Str("library", path).Msg("failed to load library plan")
			os.Exit(1)
		}
	}

	planFile, err := os.Open(*planPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to open plan")
		os.Exit(1)
	}
	defer planFile.Close()

	sched, err := engine.Load(planFile)
	if err != nil {
		log.Error().Err(err).Msg("failed to load plan")
		os.Exit(1)
	}

	var httpServer *http.Server
	if hub != nil {
		mux := http.NewServeMux()
		mux.Handle("/trace", hub)
		httpServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.TracePort), Handler: mux}
		go func() {
			log.Info().Int("port", cfg.TracePort).Msg("trace websocket listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("trace server failed")
			}
		}()
	}

	now := time.Now()
	sched.Activate(sched.Root, now)
	sched.RunToQuiescence(now)

	log.Info().
		Str("node", sched.Root.ID).
		Str("state", sched.Root.NodeState().String()).
		Str("outcome", sched.Root.NodeOutcome().String()).
		Msg("plan reached quiescence")

	if httpServer != nil {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctx)
	}

	if sched.Root.NodeOutcome().String() == "FAILURE" {
		os.Exit(1)
	}
}

// stringList collects repeated -library flag occurrences.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
