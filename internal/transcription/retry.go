package transcription

// Local whisper model tiers from cheapest to most accurate. Escalation always
// moves exactly one step up this ladder.
var modelTiers = []string{"tiny", "base", "small", "medium", "large-v3"}

// DefaultConfidenceThreshold is the average log-probability below which a
// segment counts as low confidence.
const DefaultConfidenceThreshold = -1.5

// RetryPolicy decides whether a local transcription run should be repeated
// with a larger model. One call yields at most one escalation.
type RetryPolicy struct {
	// Threshold is the log-probability floor; segments strictly below it are
	// low confidence. Zero means DefaultConfidenceThreshold.
	Threshold float64
	// MaxModel caps escalation (inclusive). Empty means the top tier.
	MaxModel string
}

// Partition splits per-segment confidences at the threshold. Values at or
// above the threshold land in high, values strictly below in low.
func Partition(confidences []float64, threshold float64) (high, low []float64) {
	for _, c := range confidences {
		if c < threshold {
			low = append(low, c)
		} else {
			high = append(high, c)
		}
	}
	return high, low
}

// NextModel inspects the per-segment confidences of a run made with the given
// model and returns the model for a retry. It returns ok=false when no
// segment is low confidence, the model is unknown, or no higher tier remains
// under the cap.
func (p RetryPolicy) NextModel(model string, confidences []float64) (string, bool) {
	threshold := p.Threshold
	if threshold == 0 {
		threshold = DefaultConfidenceThreshold
	}
	if _, low := Partition(confidences, threshold); len(low) == 0 {
		return "", false
	}
	idx := tierIndex(model)
	if idx < 0 || idx+1 >= len(modelTiers) {
		return "", false
	}
	next := idx + 1
	if limit := tierIndex(p.MaxModel); limit >= 0 && next > limit {
		return "", false
	}
	return modelTiers[next], true
}

func tierIndex(model string) int {
	for i, tier := range modelTiers {
		if tier == model {
			return i
		}
	}
	return -1
}
