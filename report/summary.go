package report

import (
	"encoding/json"
	"os"
	"time"

	"github.com/nvr-ai/go-bev/evaluation"
	"github.com/nvr-ai/go-bev/metrics"
	"github.com/pkg/errors"
)

// Summary is the JSON digest of an evaluation run.
type Summary struct {
	RunID             string                   `json:"run_id"`
	Timestamp         time.Time                `json:"timestamp"`
	MeanThreatScore   float64                  `json:"mean_threat_score"`
	ThreatScoreStdDev float64                  `json:"threat_score_std_dev"`
	UndefinedScores   int                      `json:"undefined_threat_scores"`
	MeanIoU           float64                  `json:"mean_iou"`
	Batches           int                      `json:"batches"`
	Samples           int                      `json:"samples"`
	Duration          time.Duration            `json:"duration"`
	SamplesPerSecond  float64                  `json:"samples_per_second"`
	Timings           evaluation.StageTimings  `json:"timings"`
	Memory            evaluation.MemoryMetrics `json:"memory"`
}

// NewSummary digests a result.
func NewSummary(res *evaluation.Result) Summary {
	s := Summary{
		RunID:             res.RunID,
		Timestamp:         time.Now().UTC(),
		MeanThreatScore:   res.MeanThreatScore,
		ThreatScoreStdDev: metrics.NaNStdDev(res.ThreatScores),
		UndefinedScores:   metrics.CountNaN(res.ThreatScores),
		MeanIoU:           res.MeanIoU(),
		Batches:           res.Batches,
		Samples:           res.Samples,
		Duration:          res.Duration,
		Timings:           res.Timings,
		Memory:            res.Memory,
	}
	if res.Duration > 0 {
		s.SamplesPerSecond = float64(res.Samples) / res.Duration.Seconds()
	}
	return s
}

// WriteSummary stores a summary as indented JSON.
func WriteSummary(path string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(path string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, errors.Wrapf(err, "failed to read %s", path)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, errors.Wrapf(err, "failed to unmarshal %s", path)
	}
	return s, nil
}
