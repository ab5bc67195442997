package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// NormStats are the dataset normalization statistics. They are computed once
// over the training prefix of a series and reused for every window
// normalization afterwards, training and evaluation alike.
type NormStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// PredictorSnapshot is a persisted channel-quality predictor, keyed by the
// (dataset, reduction policy) pair it was trained for. Payload carries the
// serialized network; Norm carries the statistics the network was trained
// under, so scoring after a restore sees identically scaled inputs.
type PredictorSnapshot struct {
	VersionedRecord
	ID            string    `json:"id"`
	Dataset       string    `json:"dataset"`
	Policy        string    `json:"policy"`
	PenaltyWeight float64   `json:"penalty_weight"`
	Norm          NormStats `json:"norm"`
	Payload       string    `json:"payload"`
	CreatedAtUTC  string    `json:"created_at_utc"`
}

// TrainingMetric is one logged training iteration.
type TrainingMetric struct {
	Iteration    int     `json:"iteration"`
	CrossEntropy float64 `json:"cross_entropy"`
	Penalty      float64 `json:"penalty"`
	Total        float64 `json:"total"`
}

// EvaluationRecord is one evaluated protocol variant on one dataset.
// Receptions holds the stitched per-sequence reception-probability series.
type EvaluationRecord struct {
	VersionedRecord
	ID           string      `json:"id"`
	Dataset      string      `json:"dataset"`
	Variant      string      `json:"variant"`
	PRR          float64     `json:"prr"`
	EnergyMicroJ float64     `json:"energy_uj"`
	Receptions   [][]float64 `json:"receptions,omitempty"`
	CreatedAtUTC string      `json:"created_at_utc"`
}
