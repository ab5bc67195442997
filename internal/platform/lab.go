package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"itsch/internal/model"
	"itsch/internal/predictor"
	"itsch/internal/radio"
	"itsch/internal/sched"
	"itsch/internal/series"
	"itsch/internal/stats"
	"itsch/internal/storage"
)

// Config fixes the physical and windowing parameters shared by training
// and evaluation. Evaluation must see the exact parameters training used,
// so both run through one Lab.
type Config struct {
	Store             storage.Store
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
	Logf              func(format string, args ...any)
}

// DefaultConfig matches the reference measurement campaign: 2 kHz traces
// decimated to 10 Hz, -10 dBm transmit power over 3 m, 133 byte packets,
// 5 second windows, 240 s training split, headline metrics to 300 s.
func DefaultConfig(store storage.Store) Config {
	return Config{
		Store:             store,
		SampleRate:        2000,
		TargetRate:        10,
		PowerDBm:          -10,
		Alpha:             3.5,
		DistanceM:         3,
		PacketLengthBytes: 133,
		PastWindowSec:     5,
		FutureWindowSec:   5,
		TrainSplitSec:     240,
		MetricWindowSec:   300,
		ExclusionBudget:   8,
	}
}

func (c Config) validate() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.SampleRate <= 0 || c.TargetRate <= 0 || c.SampleRate < c.TargetRate {
		return fmt.Errorf("rates must satisfy 0 < target <= sample: %d/%d", c.TargetRate, c.SampleRate)
	}
	if c.PastWindowSec <= 0 || c.FutureWindowSec <= 0 {
		return fmt.Errorf("window seconds must be positive: %d/%d", c.PastWindowSec, c.FutureWindowSec)
	}
	if c.TrainSplitSec <= 0 {
		return fmt.Errorf("train split must be positive, got %d", c.TrainSplitSec)
	}
	if c.PacketLengthBytes <= 0 {
		return fmt.Errorf("packet length must be positive, got %d", c.PacketLengthBytes)
	}
	if c.ExclusionBudget <= 0 {
		return fmt.Errorf("exclusion budget must be positive, got %d", c.ExclusionBudget)
	}
	return nil
}

// Lab wires the predictor, simulators, and persistence into the two
// top-level operations: train per-policy predictors on a dataset, and
// evaluate persisted predictors against the non-learned baselines.
type Lab struct {
	cfg   Config
	store storage.Store
}

func NewLab(cfg Config) (*Lab, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Lab{cfg: cfg, store: cfg.Store}, nil
}

func (l *Lab) Init(ctx context.Context) error {
	return l.store.Init(ctx)
}

// Reset drops all persisted state when the backend supports it.
func (l *Lab) Reset(ctx context.Context) error {
	resetter, ok := l.store.(storage.Resetter)
	if !ok {
		return fmt.Errorf("store backend does not support reset")
	}
	return resetter.Reset(ctx)
}

func (l *Lab) pastLen() int   { return l.cfg.PastWindowSec * l.cfg.SampleRate }
func (l *Lab) futureLen() int { return l.cfg.FutureWindowSec * l.cfg.SampleRate }
func (l *Lab) seqLen() int    { return l.cfg.PastWindowSec * l.cfg.TargetRate }

func (l *Lab) errorModel() radio.BitErrorProb {
	return radio.BitErrorProb{PowerDBm: l.cfg.PowerDBm, Alpha: l.cfg.Alpha, DistanceM: l.cfg.DistanceM}
}

func (l *Lab) logf(format string, args ...any) {
	if l.cfg.Logf != nil {
		l.cfg.Logf(format, args...)
	}
}

// SnapshotID keys a persisted predictor by dataset and policy.
func SnapshotID(dataset string, policy sched.Policy) string {
	return dataset + "-" + policy.String()
}

type TrainingRequest struct {
	Dataset      string
	Data         series.Series
	Policies     []sched.Policy
	Layers       int
	Neurons      int
	Iterations   int
	BatchSize    int
	LearningRate float64
	Seed         int64
}

type TrainingResult struct {
	Norm        model.NormStats
	SnapshotIDs []string
	Metrics     map[string][]model.TrainingMetric
}

// RunTraining trains one predictor per requested policy on the training
// prefix of the dataset and persists each as a snapshot keyed
// dataset-policy, together with its per-iteration metrics.
func (l *Lab) RunTraining(ctx context.Context, req TrainingRequest) (TrainingResult, error) {
	if req.Dataset == "" {
		return TrainingResult{}, fmt.Errorf("dataset name is required")
	}
	if len(req.Policies) == 0 {
		req.Policies = sched.Policies()
	}

	trainCutoff := l.cfg.TrainSplitSec * l.cfg.SampleRate
	if trainCutoff > req.Data.Timesteps() {
		trainCutoff = req.Data.Timesteps()
	}
	norm, err := series.ComputeNormStats(req.Data, trainCutoff)
	if err != nil {
		return TrainingResult{}, fmt.Errorf("normalization statistics: %w", err)
	}
	trainData, err := req.Data.SliceTime(0, trainCutoff)
	if err != nil {
		return TrainingResult{}, err
	}

	result := TrainingResult{
		Norm:    norm,
		Metrics: make(map[string][]model.TrainingMetric, len(req.Policies)),
	}
	for _, policy := range req.Policies {
		l.logf("training %s predictor on %s (%d iterations)", policy, req.Dataset, req.Iterations)

		net, err := predictor.New(predictor.Config{
			Layers:       req.Layers,
			Neurons:      req.Neurons,
			SeqLen:       l.seqLen(),
			Channels:     req.Data.Channels(),
			LearningRate: req.LearningRate,
		})
		if err != nil {
			return result, fmt.Errorf("%s predictor: %w", policy, err)
		}
		trainer, err := sched.NewTrainer(sched.TrainerConfig{
			Policy:     policy,
			Iterations: req.Iterations,
			BatchSize:  req.BatchSize,
			PastLen:    l.pastLen(),
			FutureLen:  l.futureLen(),
			SampleRate: l.cfg.SampleRate,
			TargetRate: l.cfg.TargetRate,
			Seed:       req.Seed,
			ErrorModel: l.errorModel(),
			Logf:       l.cfg.Logf,
		})
		if err != nil {
			return result, fmt.Errorf("%s trainer: %w", policy, err)
		}

		metrics, err := trainer.Run(trainData, norm, net)
		if err != nil {
			return result, fmt.Errorf("train %s: %w", policy, err)
		}

		payload, err := net.Snapshot()
		if err != nil {
			return result, fmt.Errorf("snapshot %s: %w", policy, err)
		}
		id := SnapshotID(req.Dataset, policy)
		snapshot := model.PredictorSnapshot{
			VersionedRecord: model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
			ID:              id,
			Dataset:         req.Dataset,
			Policy:          policy.String(),
			PenaltyWeight:   policy.PenaltyWeight(),
			Norm:            norm,
			Payload:         payload,
			CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339),
		}
		if err := l.store.SaveSnapshot(ctx, snapshot); err != nil {
			return result, fmt.Errorf("persist snapshot %s: %w", id, err)
		}
		if err := l.store.SaveTrainingMetrics(ctx, id, metrics); err != nil {
			return result, fmt.Errorf("persist metrics %s: %w", id, err)
		}

		result.SnapshotIDs = append(result.SnapshotIDs, id)
		result.Metrics[policy.String()] = metrics
	}
	return result, nil
}

type EvaluationRequest struct {
	RunID        string
	Dataset      string
	Data         series.Series
	Policies     []sched.Policy
	Layers       int
	Neurons      int
	LearningRate float64
	KeepSeries   bool
}

// RunEvaluation replays the two non-learned baselines and every requested
// policy's persisted predictor over the full dataset, reporting headline
// PRR and per-packet energy for each variant and persisting the records.
func (l *Lab) RunEvaluation(ctx context.Context, req EvaluationRequest) ([]model.EvaluationRecord, error) {
	if req.Dataset == "" {
		return nil, fmt.Errorf("dataset name is required")
	}
	if len(req.Policies) == 0 {
		req.Policies = sched.Policies()
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	eval, err := sched.NewEvaluator(sched.EvaluatorConfig{
		PastLen:         l.pastLen(),
		FutureLen:       l.futureLen(),
		SampleRate:      l.cfg.SampleRate,
		TargetRate:      l.cfg.TargetRate,
		ExclusionBudget: l.cfg.ExclusionBudget,
		ErrorModel:      l.errorModel(),
		Reception:       radio.PacketReceptionProb{PacketLengthBytes: l.cfg.PacketLengthBytes},
	})
	if err != nil {
		return nil, err
	}

	var records []model.EvaluationRecord

	standard := eval.Standard(req.Data)
	record, err := l.describe(runID, req, "standard", standard, radio.EnergyModel{EDEnabled: false})
	if err != nil {
		return nil, err
	}
	records = append(records, record)

	enhanced, err := eval.Enhanced(req.Data)
	if err != nil {
		return nil, fmt.Errorf("enhanced baseline: %w", err)
	}
	record, err = l.describe(runID, req, "enhanced", enhanced, radio.EnergyModel{EDEnabled: true})
	if err != nil {
		return nil, err
	}
	records = append(records, record)

	for _, policy := range req.Policies {
		id := SnapshotID(req.Dataset, policy)
		snapshot, ok, err := l.store.GetSnapshot(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", id, err)
		}
		if !ok {
			return nil, fmt.Errorf("no trained %s predictor for dataset %s; train first", policy, req.Dataset)
		}
		net, err := predictor.Restore(predictor.Config{
			Layers:       req.Layers,
			Neurons:      req.Neurons,
			SeqLen:       l.seqLen(),
			Channels:     req.Data.Channels(),
			LearningRate: req.LearningRate,
		}, snapshot.Payload)
		if err != nil {
			return nil, fmt.Errorf("restore %s: %w", id, err)
		}

		receptions, err := eval.Run(req.Data, snapshot.Norm, net)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", id, err)
		}
		record, err := l.describe(runID, req, "itsch-"+policy.String(), receptions, radio.EnergyModel{EDEnabled: true})
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	for _, record := range records {
		if err := l.store.SaveEvaluation(ctx, record); err != nil {
			return nil, fmt.Errorf("persist evaluation %s: %w", record.ID, err)
		}
	}
	return records, nil
}

func (l *Lab) describe(runID string, req EvaluationRequest, variant string, receptions [][]float64, energy radio.EnergyModel) (model.EvaluationRecord, error) {
	from := l.cfg.TrainSplitSec * l.cfg.SampleRate
	to := l.cfg.MetricWindowSec * l.cfg.SampleRate
	prr, err := stats.MeanReception(receptions, from, to)
	if err != nil {
		return model.EvaluationRecord{}, fmt.Errorf("%s reception metric: %w", variant, err)
	}
	microjoules, err := energy.PerPacketMicrojoules(prr)
	if err != nil {
		return model.EvaluationRecord{}, fmt.Errorf("%s energy metric: %w", variant, err)
	}
	l.logf("%s: PRR %.4f, energy %.2f uJ", variant, prr, microjoules)

	record := model.EvaluationRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
		ID:              runID + "-" + variant,
		Dataset:         req.Dataset,
		Variant:         variant,
		PRR:             prr,
		EnergyMicroJ:    microjoules,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339),
	}
	if req.KeepSeries {
		record.Receptions = receptions
	}
	return record, nil
}
