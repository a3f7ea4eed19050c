package pipeline

import "triagepipe/internal/logger"

// Row rejection reasons, as reported in dataset_statistics.json.
const (
	ReasonSchema = "schema"
	ReasonLabel  = "label"
)

// maxSampledErrors caps how many individual row errors are kept verbatim.
const maxSampledErrors = 20

// RowErrors accumulates row-level rejections. A bad row never aborts the
// run; it is counted, sampled for the log, and the batch continues.
type RowErrors struct {
	counts  map[string]int64
	samples []string
}

// NewRowErrors creates an empty accumulator.
func NewRowErrors() *RowErrors {
	return &RowErrors{counts: make(map[string]int64, 2)}
}

// Add records one rejected row.
func (r *RowErrors) Add(reason string, err error) {
	r.counts[reason]++
	if len(r.samples) < maxSampledErrors {
		r.samples = append(r.samples, err.Error())
	}
}

// Counts returns rejection totals by reason.
func (r *RowErrors) Counts() map[string]int64 {
	out := make(map[string]int64, len(r.counts))
	for reason, n := range r.counts {
		out[reason] = n
	}
	return out
}

// Total returns the overall rejected-row count.
func (r *RowErrors) Total() int64 {
	var total int64
	for _, n := range r.counts {
		total += n
	}
	return total
}

// LogSummary writes the accumulated rejections to the log.
func (r *RowErrors) LogSummary() {
	if r.Total() == 0 {
		return
	}
	for reason, n := range r.counts {
		logger.Warnf("Rejected %d rows (%s)", n, reason)
	}
	for _, sample := range r.samples {
		logger.Debugf("Rejected row: %s", sample)
	}
}
