package recon

// ComputeKPIs derives the four headline KPIs and their assessment
// buckets from the raw aggregate counts the single reconciliation query
// produces. ruleHitCounts has one entry per executable rule: how many
// source rows matched via that rule specifically.
func ComputeKPIs(totalSource, matchedCount int64, avgConfidence float64, inactiveCount int64, ruleHitCounts []int64, executionSeconds float64) KPIResult {
	var rcr float64
	if totalSource > 0 {
		rcr = float64(matchedCount) / float64(totalSource) * 100
	}

	dqcs := avgConfidence

	successRate := rcr / 100
	ruleUtilization := ruleUtilizationOf(ruleHitCounts)
	speedFactor := 1 + 1/executionSeconds
	rei := successRate * ruleUtilization * speedFactor / 10000

	var irr float64
	if totalSource > 0 {
		irr = float64(inactiveCount) / float64(totalSource) * 100
	}

	return KPIResult{
		RCR: rcr, RCRStatus: bucketRCR(rcr),
		DQCS: dqcs, DQCSStatus: bucketDQCS(dqcs),
		REI: rei, REIStatus: bucketREI(rei),
		IRR: irr, IRRStatus: bucketIRR(irr),
	}
}

func ruleUtilizationOf(ruleHitCounts []int64) float64 {
	if len(ruleHitCounts) == 0 {
		return 0
	}
	var used int
	for _, c := range ruleHitCounts {
		if c > 0 {
			used++
		}
	}
	return float64(used) / float64(len(ruleHitCounts))
}

func bucketRCR(v float64) string {
	switch {
	case v >= 90:
		return "HEALTHY"
	case v >= 80:
		return "WARNING"
	default:
		return "CRITICAL"
	}
}

func bucketDQCS(v float64) string {
	switch {
	case v >= 0.80:
		return "GOOD"
	case v >= 0.60:
		return "FAIR"
	default:
		return "POOR"
	}
}

func bucketREI(v float64) string {
	if v >= 40 {
		return "ACCEPTABLE"
	}
	return "NEEDS_IMPROVEMENT"
}

func bucketIRR(v float64) string {
	switch {
	case v <= 5:
		return "EXCELLENT"
	case v <= 10:
		return "GOOD"
	case v <= 20:
		return "WARNING"
	default:
		return "CRITICAL"
	}
}
