package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"

	"gene/internal/evo"
	"gene/internal/platform"
	"gene/internal/scorer"
	"gene/internal/storage"
	"gene/pkg/gene"
)

const defaultDBPath = "gene.db"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:], stdout, stderr)
	case "runs":
		return runRuns(ctx, args[1:], stdout)
	case "history":
		return runHistory(ctx, args[1:], stdout)
	case "scorers":
		return runScorers(stdout)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "optional run config JSON path")
	scorerName := fs.String("scorer", "sum", "scorer name: "+strings.Join(scorer.Names(), "|"))
	target := fs.String("target", "", "target string for the target scorer")
	population := fs.Int("pop", evo.DefaultPopulationSize, "population size")
	codeLength := fs.Int("length", evo.DefaultGeneticCodeLength, "genetic code length in bytes")
	keep := fs.Float64("keep", evo.DefaultKeepThreshold, "fraction of the population kept by selection")
	mutationChance := fs.Float64("mutation-chance", evo.DefaultMutationChancePercent, "per-individual mutation chance in [0, 1]")
	mutationGate := fs.String("mutation-gate", string(evo.MutationGateBelow), "mutation gate: below|above")
	emitEvery := fs.Int("emit-every", evo.DefaultEmitResultEvery, "generations between snapshots")
	maxGenerations := fs.Int("max-gens", 0, "stop after this many generations (0 runs until stopped)")
	buffer := fs.Int("buffer", evo.DefaultSnapshotBuffer, "snapshot channel capacity")
	seed := fs.Int64("seed", 0, "rng seed (0 seeds from the clock)")
	emissions := fs.Int("emissions", 0, "stop after N snapshots (0 disables)")
	goal := fs.Float64("goal", 0, "stop once a snapshot scores at least this (only when set)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	jsonOut := fs.Bool("json", false, "emit snapshots as JSON lines")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *emissions < 0 {
		return errors.New("emissions must be >= 0")
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if err := overrideFromFlags(&req, set, map[string]any{
		"scorer":          *scorerName,
		"target":          *target,
		"pop":             *population,
		"length":          *codeLength,
		"keep":            *keep,
		"mutation-chance": *mutationChance,
		"mutation-gate":   *mutationGate,
		"emit-every":      *emitEvery,
		"max-gens":        *maxGenerations,
		"buffer":          *buffer,
		"seed":            *seed,
	}); err != nil {
		return err
	}

	logger, err := newLogger(stderr, *logLevel)
	if err != nil {
		return err
	}
	client, err := gene.New(gene.Options{StoreKind: *storeKind, DBPath: *dbPath, Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt)
	defer stopSignals()

	started, err := client.Start(ctx, req)
	if err != nil {
		return err
	}
	if !*jsonOut {
		fmt.Fprintf(stdout, "run_id=%s scorer=%s pop=%d length=%d keep=%g mutation_chance=%g gate=%s emit_every=%s\n",
			started.ID,
			started.Scorer,
			started.Config.PopulationSize,
			started.Config.GeneticCodeLength,
			started.Config.KeepThreshold,
			started.Config.MutationChancePercent,
			started.Config.MutationGate,
			humanize.Comma(int64(started.Config.EmitResultEvery)),
		)
	}

	reason, count, best, err := consume(sigCtx, started.Snapshots, stdout, *jsonOut, *emissions, *goal, set["goal"])
	if err != nil {
		_ = client.Stop()
		return err
	}

	if stopErr := client.Stop(); stopErr != nil {
		if !errors.Is(stopErr, platform.ErrJoin) || client.Err() != nil {
			return stopErr
		}
	}
	if !*jsonOut {
		fmt.Fprintf(stdout, "stopped run_id=%s reason=%s snapshots=%d best=%s\n",
			started.ID, reason, count, humanize.Commaf(best))
	}
	return nil
}

// consume prints snapshots until the stream closes, ctx is done, or one of
// the emission and goal limits is hit. It reports why it returned.
func consume(ctx context.Context, snapshots <-chan evo.Snapshot, w io.Writer, jsonOut bool, emissions int, goal float64, goalSet bool) (string, int, float64, error) {
	count := 0
	best := 0.0
	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return "interrupted", count, best, nil
		case snapshot, ok := <-snapshots:
			if !ok {
				return "finished", count, best, nil
			}
			count++
			if count == 1 || snapshot.Score > best {
				best = snapshot.Score
			}
			if jsonOut {
				if err := enc.Encode(snapshotLine{
					RunID:      snapshot.RunID,
					Generation: snapshot.Generation,
					Score:      snapshot.Score,
					Genes:      bytesToInts(snapshot.Genes),
				}); err != nil {
					return "", count, best, err
				}
			} else {
				fmt.Fprintf(w, "generation=%s score=%s genes=%v\n",
					humanize.Comma(int64(snapshot.Generation)),
					humanize.Commaf(snapshot.Score),
					snapshot.Genes,
				)
			}
			if emissions > 0 && count >= emissions {
				return "emissions", count, best, nil
			}
			if goalSet && snapshot.Score >= goal {
				return "goal", count, best, nil
			}
		}
	}
}

type snapshotLine struct {
	RunID      string  `json:"run_id"`
	Generation int     `json:"generation"`
	Score      float64 `json:"score"`
	Genes      []int   `json:"genes"`
}

func bytesToInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

func runRuns(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := gene.New(gene.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	runs, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}

	for _, r := range runs {
		fmt.Fprintf(stdout, "run_id=%s started=%q status=%s scorer=%s pop=%d length=%d snapshots=%d best=%s\n",
			r.ID,
			humanize.Time(r.StartedAt),
			r.Status,
			r.Scorer,
			r.Parameters.PopulationSize,
			r.Parameters.GeneticCodeLength,
			r.Snapshots,
			humanize.Commaf(r.BestScore),
		)
	}
	return nil
}

func runHistory(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "show only the most recent N snapshots (0 shows all)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest")
	}
	if *runID == "" && !*latest {
		return errors.New("history requires --run-id or --latest")
	}

	client, err := gene.New(gene.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	id := *runID
	if *latest {
		id, err = client.LatestRunID(ctx)
		if err != nil {
			return err
		}
	}
	history, err := client.History(ctx, id, *limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		lines := make([]snapshotLine, 0, len(history))
		for _, s := range history {
			lines = append(lines, snapshotLine{RunID: s.RunID, Generation: s.Generation, Score: s.Score, Genes: bytesToInts(s.Genes)})
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(lines)
	}

	fmt.Fprintf(stdout, "run_id=%s snapshots=%d\n", id, len(history))
	for _, s := range history {
		fmt.Fprintf(stdout, "generation=%s score=%s genes=%v\n",
			humanize.Comma(int64(s.Generation)),
			humanize.Commaf(s.Score),
			s.Genes,
		)
	}
	return nil
}

func runScorers(stdout io.Writer) error {
	for _, name := range scorer.Names() {
		fmt.Fprintln(stdout, name)
	}
	return nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: genectl <run|runs|history|scorers> [flags]", msg)
}
