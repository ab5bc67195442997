package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"itsch/internal/storage"
	itschapi "itsch/pkg/itsch"
)

const (
	benchmarksDir = "benchmarks"
	exportsDir    = "exports"
	defaultDBPath = "itsch.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "gen", "generate":
		return runGenerate(ctx, args[1:])
	case "train":
		return runTrain(ctx, args[1:])
	case "evaluate":
		return runEvaluate(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "report":
		return runReport(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: itschctl <init|reset|gen|train|evaluate|run|runs|report|export> [flags]", msg)
}

func newClient(storeKind, dbPath string, quiet bool) (*itschapi.Client, error) {
	opts := itschapi.Options{
		StoreKind:     storeKind,
		DBPath:        dbPath,
		BenchmarksDir: benchmarksDir,
		ExportsDir:    exportsDir,
	}
	if !quiet {
		opts.Logf = func(format string, args ...any) {
			fmt.Printf(format+"\n", args...)
		}
	}
	return itschapi.New(opts)
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, true)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, true)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}
	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	out := fs.String("out", "", "output CSV path (required)")
	timesteps := fs.Int("timesteps", 0, "trace length in samples (default 600000)")
	sequences := fs.Int("sequences", 0, "number of link traces (default 1)")
	channels := fs.Int("channels", 0, "number of channels (default 16)")
	quietDBm := fs.Float64("quiet-dbm", 0, "idle interference level (default -100)")
	burstDBm := fs.Float64("burst-dbm", 0, "burst interference level (default -40)")
	meanBurst := fs.Int("mean-burst", 0, "mean burst length in samples (default 400)")
	meanIdle := fs.Int("mean-idle", 0, "mean idle gap in samples (default 1200)")
	channelSet := fs.Int("channel-set", 0, "interfered channels per trace (default 4)")
	seed := fs.Int64("seed", 0, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("generate requires -out")
	}

	client, err := newClient("", "", true)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Generate(ctx, itschapi.GenerateRequest{
		Path:       *out,
		Timesteps:  *timesteps,
		Sequences:  *sequences,
		Channels:   *channels,
		QuietDBm:   *quietDBm,
		BurstDBm:   *burstDBm,
		MeanBurst:  *meanBurst,
		MeanIdle:   *meanIdle,
		ChannelSet: *channelSet,
		Seed:       *seed,
	}); err != nil {
		return err
	}

	fmt.Printf("generated trace at %s\n", *out)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "JSON run config; explicit flags override its values")
	storeKind := fs.String("store", storage.DefaultStoreKind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	quiet := fs.Bool("quiet", false, "suppress per-iteration progress output")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")

	dataset := fs.String("dataset", "", "dataset name")
	dataPath := fs.String("data", "", "dataset CSV path")
	policies := fs.String("policies", "", "comma separated reduction policies (default mean,max)")
	iterations := fs.Int("iterations", 0, "training iterations (default 100)")
	batchSize := fs.Int("batch", 0, "pivots per training iteration (default 10)")
	seed := fs.Int64("seed", 0, "random seed")
	keepSeries := fs.Bool("keep-series", false, "keep full reception series in artifacts")

	pf := registerParamFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var req itschapi.RunRequest
	if *configPath != "" {
		loaded, err := loadRunRequestFromConfig(*configPath)
		if err != nil {
			return fmt.Errorf("load config %s: %w", *configPath, err)
		}
		req = loaded
	}

	set := setFlags(fs)
	if set["dataset"] {
		req.Dataset = *dataset
	}
	if set["data"] {
		req.DataPath = *dataPath
	}
	if set["policies"] {
		req.Policies = splitPolicies(*policies)
	}
	if set["iterations"] {
		req.Iterations = *iterations
	}
	if set["batch"] {
		req.BatchSize = *batchSize
	}
	if set["seed"] {
		req.Seed = *seed
	}
	if set["keep-series"] {
		req.KeepSeries = *keepSeries
	}
	pf.apply(set, &req.Params)

	client, err := newClient(*storeKind, *dbPath, *quiet || *jsonOut)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	if *jsonOut {
		return printJSON(summary)
	}
	fmt.Printf("run_id=%s artifacts=%s\n", summary.RunID, summary.ArtifactsDir)
	for _, v := range summary.Variants {
		fmt.Printf("  %-12s PRR=%.4f energy=%.2f uJ/pkt\n", v.Variant, v.PRR, v.EnergyMicroJ)
	}
	return nil
}

type paramFlags struct {
	sampleRate      *int
	targetRate      *int
	powerDBm        *float64
	alpha           *float64
	distance        *float64
	packetLength    *int
	pastWindow      *int
	futureWindow    *int
	trainSplit      *int
	metricWindow    *int
	exclusionBudget *int
	layers          *int
	neurons         *int
	learningRate    *float64
}

func registerParamFlags(fs *flag.FlagSet) *paramFlags {
	return &paramFlags{
		sampleRate:      fs.Int("sample-rate", 0, "trace sample rate in Hz (default 2000)"),
		targetRate:      fs.Int("target-rate", 0, "predictor input rate in Hz (default 10)"),
		powerDBm:        fs.Float64("power-dbm", 0, "transmit power in dBm (default -10)"),
		alpha:           fs.Float64("alpha", 0, "path loss exponent (default 3.5)"),
		distance:        fs.Float64("distance", 0, "link distance in meters (default 3)"),
		packetLength:    fs.Int("packet-length", 0, "packet length in bytes (default 133)"),
		pastWindow:      fs.Int("past-window", 0, "predictor history window in seconds (default 5)"),
		futureWindow:    fs.Int("future-window", 0, "prediction horizon in seconds (default 5)"),
		trainSplit:      fs.Int("train-split", 0, "training prefix in seconds (default 240)"),
		metricWindow:    fs.Int("metric-window", 0, "headline metric horizon in seconds (default 300)"),
		exclusionBudget: fs.Int("exclusion-budget", 0, "channels excluded per slot (default 8)"),
		layers:          fs.Int("layers", 0, "predictor layers (default 2)"),
		neurons:         fs.Int("neurons", 0, "neurons per layer (default 50)"),
		learningRate:    fs.Float64("learning-rate", 0, "gradient step size (default 1e-4)"),
	}
}

func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func (p *paramFlags) apply(set map[string]bool, params *itschapi.Params) {
	if set["sample-rate"] {
		params.SampleRate = *p.sampleRate
	}
	if set["target-rate"] {
		params.TargetRate = *p.targetRate
	}
	if set["power-dbm"] {
		params.PowerDBm = *p.powerDBm
	}
	if set["alpha"] {
		params.Alpha = *p.alpha
	}
	if set["distance"] {
		params.DistanceM = *p.distance
	}
	if set["packet-length"] {
		params.PacketLengthBytes = *p.packetLength
	}
	if set["past-window"] {
		params.PastWindowSec = *p.pastWindow
	}
	if set["future-window"] {
		params.FutureWindowSec = *p.futureWindow
	}
	if set["train-split"] {
		params.TrainSplitSec = *p.trainSplit
	}
	if set["metric-window"] {
		params.MetricWindowSec = *p.metricWindow
	}
	if set["exclusion-budget"] {
		params.ExclusionBudget = *p.exclusionBudget
	}
	if set["layers"] {
		params.Layers = *p.layers
	}
	if set["neurons"] {
		params.Neurons = *p.neurons
	}
	if set["learning-rate"] {
		params.LearningRate = *p.learningRate
	}
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind, "store backend: memory|sqlite (sqlite keeps snapshots across processes)")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	quiet := fs.Bool("quiet", false, "suppress per-iteration progress output")
	jsonOut := fs.Bool("json", false, "emit train summary as JSON")

	dataset := fs.String("dataset", "", "dataset name")
	dataPath := fs.String("data", "", "dataset CSV path")
	policies := fs.String("policies", "", "comma separated reduction policies (default mean,max)")
	iterations := fs.Int("iterations", 0, "training iterations (default 1000)")
	batchSize := fs.Int("batch", 0, "pivots per training iteration (default 32)")
	seed := fs.Int64("seed", 0, "random seed")
	pf := registerParamFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := itschapi.TrainRequest{
		Dataset:    *dataset,
		DataPath:   *dataPath,
		Policies:   splitPolicies(*policies),
		Iterations: *iterations,
		BatchSize:  *batchSize,
		Seed:       *seed,
	}
	pf.apply(setFlags(fs), &req.Params)

	client, err := newClient(*storeKind, *dbPath, *quiet || *jsonOut)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Train(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(summary)
	}
	fmt.Printf("run_id=%s artifacts=%s\n", summary.RunID, summary.ArtifactsDir)
	for _, id := range summary.SnapshotIDs {
		fmt.Printf("  snapshot %s\n", id)
	}
	return nil
}

func runEvaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind, "store backend: memory|sqlite (sqlite loads snapshots from an earlier train)")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit evaluation summary as JSON")

	dataset := fs.String("dataset", "", "dataset name")
	dataPath := fs.String("data", "", "dataset CSV path")
	policies := fs.String("policies", "", "comma separated reduction policies (default mean,max)")
	seed := fs.Int64("seed", 0, "run id seed component")
	keepSeries := fs.Bool("keep-series", false, "keep full reception series in artifacts")
	pf := registerParamFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := itschapi.EvaluateRequest{
		Dataset:    *dataset,
		DataPath:   *dataPath,
		Policies:   splitPolicies(*policies),
		Seed:       *seed,
		KeepSeries: *keepSeries,
	}
	pf.apply(setFlags(fs), &req.Params)

	client, err := newClient(*storeKind, *dbPath, true)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Evaluate(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(summary)
	}
	fmt.Printf("run_id=%s artifacts=%s\n", summary.RunID, summary.ArtifactsDir)
	for _, v := range summary.Variants {
		fmt.Printf("  %-12s PRR=%.4f energy=%.2f uJ/pkt\n", v.Variant, v.PRR, v.EnergyMicroJ)
	}
	return nil
}

func splitPolicies(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := newClient("", "", true)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, itschapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return printJSON(items)
	}
	for _, item := range items {
		fmt.Printf("%s dataset=%s iterations=%d seed=%d best_prr=%.4f created=%s\n",
			item.RunID, item.Dataset, item.Iterations, item.Seed, item.BestPRR, item.CreatedAtUTC)
	}
	return nil
}

func runReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "report the most recent run")
	jsonOut := fs.Bool("json", false, "emit report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient("", "", true)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	report, err := client.ReportRun(ctx, itschapi.ReportRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(report)
	}
	fmt.Printf("run_id=%s dataset=%s\n", report.RunID, report.Dataset)
	for _, v := range report.Variants {
		fmt.Printf("  %-12s PRR=%.4f energy=%.2f uJ/pkt\n", v.Variant, v.PRR, v.EnergyMicroJ)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient("", "", true)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, itschapi.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s to=%s\n", summary.RunID, summary.Directory)
	return nil
}

func printJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
