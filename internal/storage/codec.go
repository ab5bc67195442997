package storage

import (
	"encoding/json"
	"errors"

	"itsch/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeSnapshot(s model.PredictorSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSnapshot(data []byte) (model.PredictorSnapshot, error) {
	var snapshot model.PredictorSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.PredictorSnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.PredictorSnapshot{}, err
	}
	return snapshot, nil
}

func EncodeTrainingMetrics(metrics []model.TrainingMetric) ([]byte, error) {
	return json.Marshal(metrics)
}

func DecodeTrainingMetrics(data []byte) ([]model.TrainingMetric, error) {
	var metrics []model.TrainingMetric
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

func EncodeEvaluation(r model.EvaluationRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeEvaluation(data []byte) (model.EvaluationRecord, error) {
	var record model.EvaluationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return model.EvaluationRecord{}, err
	}
	if err := checkVersion(record.VersionedRecord); err != nil {
		return model.EvaluationRecord{}, err
	}
	return record, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
