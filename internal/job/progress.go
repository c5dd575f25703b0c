package job

// Progress derivations are pure and never fail: malformed or partial records
// degrade to zeroed results rather than propagating errors into the view
// layer.

// StageProgress returns the completion percentage of one stage, clamped to
// [0,100]. A stage with no units reports 0, never NaN.
func StageProgress(stage Stage) float64 {
	if stage.TotalUnits <= 0 {
		return 0
	}

	percent := float64(stage.ProcessedUnits) / float64(stage.TotalUnits) * 100

	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}

	return percent
}

// OverallProgress returns the stage-weighted completion percentage of a bulk
// staged record. Each stage is weighted by its own TotalUnits relative to the
// sum across all stages; a stage with zero units contributes zero weight
// rather than dragging the average down.
func OverallProgress(record *Record) float64 {
	if record == nil || len(record.Stages) == 0 {
		return 0
	}

	var totalUnits int
	for _, stage := range record.Stages {
		if stage.TotalUnits > 0 {
			totalUnits += stage.TotalUnits
		}
	}

	if totalUnits == 0 {
		return 0
	}

	var weighted float64
	for _, stage := range record.Stages {
		if stage.TotalUnits <= 0 {
			continue
		}

		weight := float64(stage.TotalUnits) / float64(totalUnits)
		weighted += weight * StageProgress(stage)
	}

	if weighted > 100 {
		return 100
	}

	return weighted
}

// AggregateStatistics sums counters across records. Nil records are skipped,
// and an empty input yields all-zero counters.
func AggregateStatistics(records []*Record) Statistics {
	var total Statistics

	for _, record := range records {
		if record == nil {
			continue
		}

		total.Collected += record.Stats.Collected
		total.Processed += record.Stats.Processed
		total.Succeeded += record.Stats.Succeeded
		total.Failed += record.Stats.Failed
		total.Skipped += record.Stats.Skipped
	}

	return total
}
