// Package itsch exposes the interference-aware TSCH pipeline as a small
// client API: generate or load interference traces, train per-policy
// channel predictors, and evaluate them against the non-learned baselines.
package itsch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"itsch/internal/model"
	"itsch/internal/platform"
	"itsch/internal/sched"
	"itsch/internal/series"
	"itsch/internal/stats"
	"itsch/internal/storage"
)

const (
	defaultBenchmarksDir = "benchmarks"
	defaultExportsDir    = "exports"
	defaultDBPath        = "itsch.db"
)

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
	Logf          func(format string, args ...any)
}

type Client struct {
	store     storage.Store
	storeKind string

	benchmarksDir string
	exportsDir    string
	logf          func(format string, args ...any)
}

// Params collects the physical and model parameters shared by training
// and evaluation. Zero values are replaced by the reference campaign
// defaults: 2 kHz traces decimated to 10 Hz, -10 dBm over 3 m, 133 byte
// packets, 5 s windows, 240 s training split, 8 excluded channels.
type Params struct {
	SampleRate        int
	TargetRate        int
	PowerDBm          float64
	Alpha             float64
	DistanceM         float64
	PacketLengthBytes int
	PastWindowSec     int
	FutureWindowSec   int
	TrainSplitSec     int
	MetricWindowSec   int
	ExclusionBudget   int
	Layers            int
	Neurons           int
	LearningRate      float64
}

func (p Params) withDefaults() Params {
	if p.SampleRate <= 0 {
		p.SampleRate = 2000
	}
	if p.TargetRate <= 0 {
		p.TargetRate = 10
	}
	if p.PowerDBm == 0 {
		p.PowerDBm = -10
	}
	if p.Alpha <= 0 {
		p.Alpha = 3.5
	}
	if p.DistanceM <= 0 {
		p.DistanceM = 3
	}
	if p.PacketLengthBytes <= 0 {
		p.PacketLengthBytes = 133
	}
	if p.PastWindowSec <= 0 {
		p.PastWindowSec = 5
	}
	if p.FutureWindowSec <= 0 {
		p.FutureWindowSec = 5
	}
	if p.TrainSplitSec <= 0 {
		p.TrainSplitSec = 240
	}
	if p.MetricWindowSec <= 0 {
		p.MetricWindowSec = 300
	}
	if p.ExclusionBudget <= 0 {
		p.ExclusionBudget = 8
	}
	if p.Layers <= 0 {
		p.Layers = 2
	}
	if p.Neurons <= 0 {
		p.Neurons = 50
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 1e-4
	}
	return p
}

type GenerateRequest struct {
	Path       string
	Timesteps  int
	Sequences  int
	Channels   int
	QuietDBm   float64
	BurstDBm   float64
	MeanBurst  int
	MeanIdle   int
	ChannelSet int
	Seed       int64
}

type RunRequest struct {
	Dataset    string
	DataPath   string
	Policies   []string
	Iterations int
	BatchSize  int
	Seed       int64
	Params     Params
	KeepSeries bool
}

type TrainRequest struct {
	Dataset    string
	DataPath   string
	Policies   []string
	Iterations int
	BatchSize  int
	Seed       int64
	Params     Params
}

type TrainSummary struct {
	RunID        string
	ArtifactsDir string
	SnapshotIDs  []string
	FinalLoss    map[string]float64
}

type EvaluateRequest struct {
	Dataset    string
	DataPath   string
	Policies   []string
	Seed       int64
	Params     Params
	KeepSeries bool
}

type VariantSummary struct {
	Variant      string
	PRR          float64
	EnergyMicroJ float64
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Variants     []VariantSummary
	BestPRR      float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	Dataset      string
	Iterations   int
	Seed         int64
	BestPRR      float64
	CreatedAtUTC string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type ReportRequest struct {
	RunID  string
	Latest bool
}

type Report struct {
	RunID    string
	Dataset  string
	Variants []VariantSummary
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{
		store:         store,
		storeKind:     storeKind,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
		logf:          opts.Logf,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Reset drops all persisted snapshots, metrics, and evaluations.
func (c *Client) Reset(ctx context.Context) error {
	resetter, ok := c.store.(storage.Resetter)
	if !ok {
		return errors.New("store backend does not support reset")
	}
	return resetter.Reset(ctx)
}

// Generate writes a synthetic interference trace to a CSV dataset.
func (c *Client) Generate(_ context.Context, req GenerateRequest) error {
	if req.Path == "" {
		return errors.New("generate requires an output path")
	}
	cfg := series.DefaultGenerateConfig()
	if req.Timesteps > 0 {
		cfg.Timesteps = req.Timesteps
	}
	if req.Sequences > 0 {
		cfg.Sequences = req.Sequences
	}
	if req.Channels > 0 {
		cfg.Channels = req.Channels
	}
	if req.QuietDBm != 0 {
		cfg.QuietDBm = req.QuietDBm
	}
	if req.BurstDBm != 0 {
		cfg.BurstDBm = req.BurstDBm
	}
	if req.MeanBurst > 0 {
		cfg.MeanBurst = req.MeanBurst
	}
	if req.MeanIdle > 0 {
		cfg.MeanIdle = req.MeanIdle
	}
	if req.ChannelSet > 0 {
		cfg.ChannelSet = req.ChannelSet
	}

	data, err := series.Generate(rand.New(rand.NewSource(req.Seed)), cfg)
	if err != nil {
		return err
	}
	return series.SaveCSV(req.Path, data)
}

func (c *Client) lab(params Params) (*platform.Lab, error) {
	return platform.NewLab(platform.Config{
		Store:             c.store,
		SampleRate:        params.SampleRate,
		TargetRate:        params.TargetRate,
		PowerDBm:          params.PowerDBm,
		Alpha:             params.Alpha,
		DistanceM:         params.DistanceM,
		PacketLengthBytes: params.PacketLengthBytes,
		PastWindowSec:     params.PastWindowSec,
		FutureWindowSec:   params.FutureWindowSec,
		TrainSplitSec:     params.TrainSplitSec,
		MetricWindowSec:   params.MetricWindowSec,
		ExclusionBudget:   params.ExclusionBudget,
		Logf:              c.logf,
	})
}

func parsePolicies(names []string) ([]sched.Policy, error) {
	if len(names) == 0 {
		return sched.Policies(), nil
	}
	out := make([]sched.Policy, 0, len(names))
	for _, name := range names {
		policy, err := sched.ParsePolicy(name)
		if err != nil {
			return nil, err
		}
		out = append(out, policy)
	}
	return out, nil
}

// Run trains predictors for the requested policies on the dataset, then
// evaluates them against the standard and enhanced baselines, leaving
// config, metrics, evaluation records, and plots under the benchmarks
// directory.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Dataset == "" {
		return RunSummary{}, errors.New("run requires a dataset name")
	}
	if req.DataPath == "" {
		return RunSummary{}, errors.New("run requires a dataset path")
	}
	if req.Iterations <= 0 {
		req.Iterations = 1000
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 32
	}
	params := req.Params.withDefaults()
	policies, err := parsePolicies(req.Policies)
	if err != nil {
		return RunSummary{}, err
	}

	data, err := series.LoadCSV(req.DataPath)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load dataset: %w", err)
	}

	lab, err := c.lab(params)
	if err != nil {
		return RunSummary{}, err
	}
	if err := lab.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := fmt.Sprintf("%s-%d-%d", req.Dataset, req.Seed, now.Unix())

	training, err := lab.RunTraining(ctx, platform.TrainingRequest{
		Dataset:      req.Dataset,
		Data:         data,
		Policies:     policies,
		Layers:       params.Layers,
		Neurons:      params.Neurons,
		Iterations:   req.Iterations,
		BatchSize:    req.BatchSize,
		LearningRate: params.LearningRate,
		Seed:         req.Seed,
	})
	if err != nil {
		return RunSummary{}, err
	}

	records, err := lab.RunEvaluation(ctx, platform.EvaluationRequest{
		RunID:        runID,
		Dataset:      req.Dataset,
		Data:         data,
		Policies:     policies,
		Layers:       params.Layers,
		Neurons:      params.Neurons,
		LearningRate: params.LearningRate,
		KeepSeries:   true,
	})
	if err != nil {
		return RunSummary{}, err
	}

	artifactRecords := records
	if !req.KeepSeries {
		artifactRecords = make([]model.EvaluationRecord, len(records))
		for i, record := range records {
			record.Receptions = nil
			artifactRecords[i] = record
		}
	}
	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config:      c.buildRunConfig(runID, req.Dataset, req.DataPath, req.Iterations, req.BatchSize, req.Seed, params),
		Metrics:     training.Metrics,
		Evaluations: artifactRecords,
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := writeLossPlots(runDir, training.Metrics); err != nil {
		return RunSummary{}, err
	}
	receptionPlot := filepath.Join(runDir, "reception.png")
	if err := stats.WriteReceptionPlot(receptionPlot, records, params.SampleRate); err != nil {
		return RunSummary{}, fmt.Errorf("reception plot: %w", err)
	}

	summary := RunSummary{RunID: runID, ArtifactsDir: filepath.Clean(runDir)}
	for _, record := range records {
		summary.Variants = append(summary.Variants, VariantSummary{
			Variant:      record.Variant,
			PRR:          record.PRR,
			EnergyMicroJ: record.EnergyMicroJ,
		})
		if record.PRR > summary.BestPRR {
			summary.BestPRR = record.PRR
		}
	}

	if err := stats.AppendRunIndex(c.benchmarksDir, stats.RunIndexEntry{
		RunID:        runID,
		Dataset:      req.Dataset,
		Iterations:   req.Iterations,
		Seed:         req.Seed,
		BestPRR:      summary.BestPRR,
		CreatedAtUTC: now.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}
	return summary, nil
}

// Train trains and persists per-policy predictors without evaluating
// them, leaving config, metric CSVs, and loss plots under the benchmarks
// directory. Use a sqlite store to evaluate in a later process.
func (c *Client) Train(ctx context.Context, req TrainRequest) (TrainSummary, error) {
	if req.Dataset == "" {
		return TrainSummary{}, errors.New("train requires a dataset name")
	}
	if req.DataPath == "" {
		return TrainSummary{}, errors.New("train requires a dataset path")
	}
	if req.Iterations <= 0 {
		req.Iterations = 1000
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 32
	}
	params := req.Params.withDefaults()
	policies, err := parsePolicies(req.Policies)
	if err != nil {
		return TrainSummary{}, err
	}

	data, err := series.LoadCSV(req.DataPath)
	if err != nil {
		return TrainSummary{}, fmt.Errorf("load dataset: %w", err)
	}
	lab, err := c.lab(params)
	if err != nil {
		return TrainSummary{}, err
	}
	if err := lab.Init(ctx); err != nil {
		return TrainSummary{}, err
	}

	runID := fmt.Sprintf("%s-train-%d", req.Dataset, time.Now().UTC().Unix())
	training, err := lab.RunTraining(ctx, platform.TrainingRequest{
		Dataset:      req.Dataset,
		Data:         data,
		Policies:     policies,
		Layers:       params.Layers,
		Neurons:      params.Neurons,
		Iterations:   req.Iterations,
		BatchSize:    req.BatchSize,
		LearningRate: params.LearningRate,
		Seed:         req.Seed,
	})
	if err != nil {
		return TrainSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config:  c.buildRunConfig(runID, req.Dataset, req.DataPath, req.Iterations, req.BatchSize, req.Seed, params),
		Metrics: training.Metrics,
	})
	if err != nil {
		return TrainSummary{}, err
	}
	if err := writeLossPlots(runDir, training.Metrics); err != nil {
		return TrainSummary{}, err
	}

	summary := TrainSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		SnapshotIDs:  training.SnapshotIDs,
		FinalLoss:    make(map[string]float64, len(training.Metrics)),
	}
	for policy, metrics := range training.Metrics {
		if len(metrics) > 0 {
			summary.FinalLoss[policy] = metrics[len(metrics)-1].Total
		}
	}
	return summary, nil
}

// Evaluate replays previously trained predictors against the baselines,
// leaving config, evaluation records, the reception plot, and a run index
// entry under the benchmarks directory.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (RunSummary, error) {
	if req.Dataset == "" {
		return RunSummary{}, errors.New("evaluate requires a dataset name")
	}
	if req.DataPath == "" {
		return RunSummary{}, errors.New("evaluate requires a dataset path")
	}
	params := req.Params.withDefaults()
	policies, err := parsePolicies(req.Policies)
	if err != nil {
		return RunSummary{}, err
	}

	data, err := series.LoadCSV(req.DataPath)
	if err != nil {
		return RunSummary{}, fmt.Errorf("load dataset: %w", err)
	}
	lab, err := c.lab(params)
	if err != nil {
		return RunSummary{}, err
	}
	if err := lab.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := fmt.Sprintf("%s-%d-%d", req.Dataset, req.Seed, now.Unix())
	records, err := lab.RunEvaluation(ctx, platform.EvaluationRequest{
		RunID:        runID,
		Dataset:      req.Dataset,
		Data:         data,
		Policies:     policies,
		Layers:       params.Layers,
		Neurons:      params.Neurons,
		LearningRate: params.LearningRate,
		KeepSeries:   true,
	})
	if err != nil {
		return RunSummary{}, err
	}

	artifactRecords := records
	if !req.KeepSeries {
		artifactRecords = make([]model.EvaluationRecord, len(records))
		for i, record := range records {
			record.Receptions = nil
			artifactRecords[i] = record
		}
	}
	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config:      c.buildRunConfig(runID, req.Dataset, req.DataPath, 0, 0, req.Seed, params),
		Evaluations: artifactRecords,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.WriteReceptionPlot(filepath.Join(runDir, "reception.png"), records, params.SampleRate); err != nil {
		return RunSummary{}, fmt.Errorf("reception plot: %w", err)
	}

	summary := RunSummary{RunID: runID, ArtifactsDir: filepath.Clean(runDir)}
	for _, record := range records {
		summary.Variants = append(summary.Variants, VariantSummary{
			Variant:      record.Variant,
			PRR:          record.PRR,
			EnergyMicroJ: record.EnergyMicroJ,
		})
		if record.PRR > summary.BestPRR {
			summary.BestPRR = record.PRR
		}
	}
	if err := stats.AppendRunIndex(c.benchmarksDir, stats.RunIndexEntry{
		RunID:        runID,
		Dataset:      req.Dataset,
		Seed:         req.Seed,
		BestPRR:      summary.BestPRR,
		CreatedAtUTC: now.Format(time.RFC3339Nano),
	}); err != nil {
		return RunSummary{}, err
	}
	return summary, nil
}

func (c *Client) buildRunConfig(runID, dataset, dataPath string, iterations, batchSize int, seed int64, params Params) stats.RunConfig {
	return stats.RunConfig{
		RunID:             runID,
		Dataset:           dataset,
		DatasetPath:       dataPath,
		StoreKind:         c.storeKind,
		SampleRate:        params.SampleRate,
		TargetRate:        params.TargetRate,
		PowerDBm:          params.PowerDBm,
		Alpha:             params.Alpha,
		DistanceM:         params.DistanceM,
		PacketLengthBytes: params.PacketLengthBytes,
		PastWindowSec:     params.PastWindowSec,
		FutureWindowSec:   params.FutureWindowSec,
		TrainSplitSec:     params.TrainSplitSec,
		Layers:            params.Layers,
		Neurons:           params.Neurons,
		Iterations:        iterations,
		BatchSize:         batchSize,
		ExclusionBudget:   params.ExclusionBudget,
		Seed:              seed,
	}
}

func writeLossPlots(runDir string, metrics map[string][]model.TrainingMetric) error {
	for policy, policyMetrics := range metrics {
		path := filepath.Join(runDir, "loss-"+policy+".png")
		if err := stats.WriteLossPlot(path, policyMetrics); err != nil {
			return fmt.Errorf("loss plot %s: %w", policy, err)
		}
	}
	return nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			Dataset:      e.Dataset,
			Iterations:   e.Iterations,
			Seed:         e.Seed,
			BestPRR:      e.BestPRR,
			CreatedAtUTC: e.CreatedAtUTC,
		})
	}
	return out, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.benchmarksDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", errors.New("requires run id or latest")
	}
	return runID, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// ReportRun reads a finished run's evaluation records back from the
// benchmarks directory.
func (c *Client) ReportRun(_ context.Context, req ReportRequest) (Report, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return Report{}, err
	}
	cfg, ok, err := stats.ReadRunConfig(c.benchmarksDir, runID)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return Report{}, fmt.Errorf("run not found: %s", runID)
	}
	records, ok, err := stats.ReadEvaluations(c.benchmarksDir, runID)
	if err != nil {
		return Report{}, err
	}
	if !ok {
		return Report{}, fmt.Errorf("no evaluations recorded for run: %s", runID)
	}
	report := Report{RunID: runID, Dataset: cfg.Dataset}
	for _, record := range records {
		report.Variants = append(report.Variants, VariantSummary{
			Variant:      record.Variant,
			PRR:          record.PRR,
			EnergyMicroJ: record.EnergyMicroJ,
		})
	}
	return report, nil
}
