package council

// stageMetrics folds the per-call metrics of one concurrent round: costs
// and tokens sum, latency is the maximum since the calls ran in parallel.
func stageMetrics(responses []ParticipantResponse) Metrics {
	var m Metrics
	for _, r := range responses {
		m.CostUSD += r.Metrics.CostUSD
		m.PromptTokens += r.Metrics.PromptTokens
		m.CompletionTokens += r.Metrics.CompletionTokens
		m.TotalTokens += r.Metrics.TotalTokens
		if r.Metrics.Latency > m.Latency {
			m.Latency = r.Metrics.Latency
		}
	}
	return m
}

// addSequential folds metrics of stages that ran one after another:
// everything sums, including latency.
func addSequential(a, b Metrics) Metrics {
	return Metrics{
		CostUSD:          a.CostUSD + b.CostUSD,
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
		Latency:          a.Latency + b.Latency,
	}
}

// sessionMetrics computes the aggregate for a finished session: per-round
// stage metrics composed sequentially, plus the synthesis call.
func sessionMetrics(rounds []Round, synthesis *Synthesis) Metrics {
	var total Metrics
	for _, round := range rounds {
		total = addSequential(total, stageMetrics(round.Responses))
	}
	if synthesis != nil {
		total = addSequential(total, synthesis.Metrics)
	}
	return total
}
