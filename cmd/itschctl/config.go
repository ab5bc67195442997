package main

import (
	"encoding/json"
	"math"
	"os"

	itschapi "itsch/pkg/itsch"
)

func loadRunRequestFromConfig(path string) (itschapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return itschapi.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return itschapi.RunRequest{}, err
	}

	var req itschapi.RunRequest
	if v, ok := asString(raw["dataset"]); ok {
		req.Dataset = v
	}
	if v, ok := asString(raw["data_path"]); ok {
		req.DataPath = v
	}
	if v, ok := asStringSlice(raw["policies"]); ok {
		req.Policies = v
	}
	if v, ok := asInt(raw["iterations"]); ok {
		req.Iterations = v
	}
	if v, ok := asInt(raw["batch_size"]); ok {
		req.BatchSize = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asBool(raw["keep_series"]); ok {
		req.KeepSeries = v
	}
	if v, ok := asInt(raw["sample_rate"]); ok {
		req.Params.SampleRate = v
	}
	if v, ok := asInt(raw["target_rate"]); ok {
		req.Params.TargetRate = v
	}
	if v, ok := asFloat64(raw["power_dbm"]); ok {
		req.Params.PowerDBm = v
	}
	if v, ok := asFloat64(raw["alpha"]); ok {
		req.Params.Alpha = v
	}
	if v, ok := asFloat64(raw["distance_m"]); ok {
		req.Params.DistanceM = v
	}
	if v, ok := asInt(raw["packet_length_bytes"]); ok {
		req.Params.PacketLengthBytes = v
	}
	if v, ok := asInt(raw["past_window_sec"]); ok {
		req.Params.PastWindowSec = v
	}
	if v, ok := asInt(raw["future_window_sec"]); ok {
		req.Params.FutureWindowSec = v
	}
	if v, ok := asInt(raw["train_split_sec"]); ok {
		req.Params.TrainSplitSec = v
	}
	if v, ok := asInt(raw["metric_window_sec"]); ok {
		req.Params.MetricWindowSec = v
	}
	if v, ok := asInt(raw["exclusion_budget"]); ok {
		req.Params.ExclusionBudget = v
	}
	if v, ok := asInt(raw["layers"]); ok {
		req.Params.Layers = v
	}
	if v, ok := asInt(raw["neurons"]); ok {
		req.Params.Neurons = v
	}
	if v, ok := asFloat64(raw["learning_rate"]); ok {
		req.Params.LearningRate = v
	}
	return req, nil
}

func asString(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}

func asStringSlice(value any) ([]string, bool) {
	items, ok := value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func asBool(value any) (bool, bool) {
	b, ok := value.(bool)
	return b, ok
}

func asFloat64(value any) (float64, bool) {
	f, ok := value.(float64)
	return f, ok
}

func asInt(value any) (int, bool) {
	f, ok := value.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func asInt64(value any) (int64, bool) {
	f, ok := value.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
