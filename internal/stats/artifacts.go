package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"itsch/internal/model"
)

const runIndexFile = "run_index.json"

// RunConfig is the full configuration of one pipeline run, persisted next
// to its outputs so a run can be reproduced from its artifacts alone.
type RunConfig struct {
	RunID             string  `json:"run_id"`
	Dataset           string  `json:"dataset"`
	DatasetPath       string  `json:"dataset_path,omitempty"`
	StoreKind         string  `json:"store_kind,omitempty"`
	SampleRate        int     `json:"sample_rate"`
	TargetRate        int     `json:"target_rate"`
	PowerDBm          float64 `json:"power_dbm"`
	Alpha             float64 `json:"alpha"`
	DistanceM         float64 `json:"distance_m"`
	PacketLengthBytes int     `json:"packet_length_bytes"`
	PastWindowSec     int     `json:"past_window_sec"`
	FutureWindowSec   int     `json:"future_window_sec"`
	TrainSplitSec     int     `json:"train_split_sec"`
	Layers            int     `json:"layers"`
	Neurons           int     `json:"neurons"`
	Iterations        int     `json:"iterations"`
	BatchSize         int     `json:"batch_size"`
	ExclusionBudget   int     `json:"exclusion_budget"`
	Seed              int64   `json:"seed"`
}

// RunArtifacts bundles everything a finished run leaves on disk.
type RunArtifacts struct {
	Config      RunConfig                        `json:"config"`
	Metrics     map[string][]model.TrainingMetric `json:"metrics,omitempty"`
	Evaluations []model.EvaluationRecord          `json:"evaluations,omitempty"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Dataset      string  `json:"dataset"`
	Iterations   int     `json:"iterations"`
	Seed         int64   `json:"seed"`
	BestPRR      float64 `json:"best_prr"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// WriteRunArtifacts lays the run out under baseDir/<runID>: config.json,
// one metrics-<policy>.csv per trained policy, and evaluations.json.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	for policy, metrics := range artifacts.Metrics {
		if err := writeMetricsCSV(filepath.Join(runDir, "metrics-"+policy+".csv"), metrics); err != nil {
			return "", err
		}
	}
	if err := writeJSON(filepath.Join(runDir, "evaluations.json"), artifacts.Evaluations); err != nil {
		return "", err
	}

	return runDir, nil
}

func writeMetricsCSV(path string, metrics []model.TrainingMetric) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"iteration", "cross_entropy", "penalty", "total"}); err != nil {
		return err
	}
	for _, m := range metrics {
		record := []string{
			strconv.Itoa(m.Iteration),
			strconv.FormatFloat(m.CrossEntropy, 'g', -1, 64),
			strconv.FormatFloat(m.Penalty, 'g', -1, 64),
			strconv.FormatFloat(m.Total, 'g', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadMetricsCSV reads a metrics file written by WriteRunArtifacts.
func ReadMetricsCSV(path string) ([]model.TrainingMetric, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("metrics file %q is empty", path)
	}
	metrics := make([]model.TrainingMetric, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != 4 {
			return nil, fmt.Errorf("malformed metrics record %v", record)
		}
		iteration, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, err
		}
		values := make([]float64, 3)
		for i, field := range record[1:] {
			if values[i], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, err
			}
		}
		metrics = append(metrics, model.TrainingMetric{
			Iteration:    iteration,
			CrossEntropy: values[0],
			Penalty:      values[1],
			Total:        values[2],
		})
	}
	return metrics, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run's files into outDir/<runID>. Metrics
// files and plots are optional; everything else must exist.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{"config.json", "evaluations.json"} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(name) == ".csv" || filepath.Ext(name) == ".png" {
			if err := copyFile(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
				return "", err
			}
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}
	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func ReadEvaluations(baseDir, runID string) ([]model.EvaluationRecord, bool, error) {
	path := filepath.Join(baseDir, runID, "evaluations.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var records []model.EvaluationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, err
	}
	return records, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
