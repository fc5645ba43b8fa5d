// Command outpost post-processes a batch of agent-emitted intents
// against GitHub: it resolves temporary references, sanitizes content,
// enforces policy limits and executes each intent through its handler,
// then writes a markdown summary of what happened.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/outpost-ci/outpost/internal/config"
	"github.com/outpost-ci/outpost/internal/dispatch"
	"github.com/outpost-ci/outpost/internal/intent"
	"github.com/outpost-ci/outpost/internal/platform"
	"github.com/outpost-ci/outpost/internal/resolve"
	"github.com/outpost-ci/outpost/internal/summary"
)

func main() {
	os.Exit(run())
}

func run() int {
	intentsPath := flag.String("intents", "", "path to the JSONL intents file (required)")
	summaryPath := flag.String("summary", "", "write the markdown summary here (default: GITHUB_STEP_SUMMARY or stdout)")
	staged := flag.Bool("staged", false, "dry run: validate and preview, never mutate the platform")
	repo := flag.String("repo", os.Getenv("GITHUB_REPOSITORY"), "owner/name of the triggering repository")
	number := flag.Int("number", 0, "number of the triggering issue, PR or discussion (0 = not item-triggered)")
	discussion := flag.Bool("discussion", false, "the triggering item is a discussion")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	// Optional; CI provides real environment variables.
	_ = godotenv.Load()

	setupLogging(*debug)

	if *intentsPath == "" {
		log.Error().Msg("-intents is required")
		return 2
	}
	if *repo == "" {
		log.Error().Msg("-repo or GITHUB_REPOSITORY is required")
		return 2
	}
	owner, name, ok := intent.SplitRepo(*repo)
	if !ok {
		log.Error().Str("repo", *repo).Msg("Repository must be owner/name")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return 2
	}
	if *staged {
		cfg.Staged = true
	}

	batch, err := intent.LoadBatch(*intentsPath)
	if err != nil {
		log.Error().Err(err).Str("path", *intentsPath).Msg("Failed to load intents")
		return 2
	}
	if len(batch) == 0 {
		log.Info().Msg("No intents to process")
		return 0
	}

	auth, err := tokenProvider()
	if err != nil {
		log.Error().Err(err).Msg("No usable credentials")
		return 2
	}
	client, err := platform.NewGitHubClient(auth, *repo)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build platform client")
		return 2
	}

	// Outside Actions there is no run id; mint one so markers still
	// correlate the entities this run touched.
	runID := os.Getenv("GITHUB_RUN_ID")
	if runID == "" {
		runID = uuid.NewString()
	}

	exec := dispatch.ExecutionContext{
		Owner:            owner,
		Repo:             name,
		TriggeringNumber: *number,
		IsDiscussion:     *discussion,
		HeadSHA:          os.Getenv("GITHUB_SHA"),
		RunID:            runID,
		RunURL:           runURL(*repo),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 15*time.Minute)
	defer cancelTimeout()

	results := process(ctx, cfg, client, exec, batch)

	md := summary.Render(results)
	if err := writeSummary(*summaryPath, md); err != nil {
		log.Error().Err(err).Msg("Failed to write summary")
		return 1
	}

	if summary.AnyFatal(results) {
		return 1
	}
	return 0
}

// process runs the multi-pass dispatch loop: every pass retries only
// the intents still deferred on unresolved temporary ids, and the loop
// stops early when a pass makes no progress. The review buffer flushes
// once, after the final pass.
func process(ctx context.Context, cfg *config.Config, client platform.Client, exec dispatch.ExecutionContext, batch []intent.Intent) []intent.HandlerResult {
	d := dispatch.New(cfg, client, exec)
	m := resolve.NewMap()

	results, pending := d.Process(ctx, batch, m)
	for pass := 2; pass <= cfg.Passes && len(pending) > 0; pass++ {
		log.Debug().Int("pass", pass).Int("deferred", len(pending)).Msg("Retrying deferred intents")

		sub := make([]intent.Intent, 0, len(pending))
		for _, i := range pending {
			sub = append(sub, batch[i])
		}
		subResults, subDeferred := d.Process(ctx, sub, m)

		for j, r := range subResults {
			results[pending[j]] = r
		}
		if len(subDeferred) == len(pending) {
			break
		}
		next := make([]int, 0, len(subDeferred))
		for _, j := range subDeferred {
			next = append(next, pending[j])
		}
		pending = next
	}

	if flushed := d.Flush(ctx); flushed != nil {
		results = append(results, *flushed)
	}
	return results
}

// tokenProvider picks credentials: a PAT when present, otherwise
// GitHub App auth.
func tokenProvider() (platform.TokenProvider, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return platform.StaticToken(token), nil
	}
	appID := os.Getenv("OUTPOST_APP_ID")
	key := os.Getenv("OUTPOST_APP_PRIVATE_KEY")
	if appID != "" && key != "" {
		return &platform.AppAuth{AppID: appID, PrivateKey: key}, nil
	}
	return nil, fmt.Errorf("set GITHUB_TOKEN, or OUTPOST_APP_ID and OUTPOST_APP_PRIVATE_KEY")
}

func runURL(repo string) string {
	runID := os.Getenv("GITHUB_RUN_ID")
	if runID == "" {
		return ""
	}
	server := os.Getenv("GITHUB_SERVER_URL")
	if server == "" {
		server = "https://github.com"
	}
	return fmt.Sprintf("%s/%s/actions/runs/%s", server, repo, runID)
}

func writeSummary(path, md string) error {
	if path == "" {
		path = os.Getenv("GITHUB_STEP_SUMMARY")
	}
	if path == "" {
		fmt.Println(md)
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(md)
	return err
}

func setupLogging(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	} else if raw := os.Getenv("OUTPOST_LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
