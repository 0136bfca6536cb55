package recon

import "testing"

func TestComputeKPIs_RCRBucketsAtThresholds(t *testing.T) {
	cases := []struct {
		matched, total int64
		want           string
	}{
		{95, 100, "HEALTHY"},
		{90, 100, "HEALTHY"},
		{85, 100, "WARNING"},
		{80, 100, "WARNING"},
		{70, 100, "CRITICAL"},
	}
	for _, c := range cases {
		got := ComputeKPIs(c.total, c.matched, 0.9, 0, []int64{1}, 10)
		if got.RCRStatus != c.want {
			t.Errorf("matched=%d total=%d: RCRStatus = %s, want %s", c.matched, c.total, got.RCRStatus, c.want)
		}
	}
}

func TestComputeKPIs_DQCSIsAvgConfidenceDirectly(t *testing.T) {
	got := ComputeKPIs(100, 50, 0.73, 0, []int64{1}, 10)
	if got.DQCS != 0.73 {
		t.Fatalf("DQCS = %v, want 0.73", got.DQCS)
	}
	if got.DQCSStatus != "FAIR" {
		t.Fatalf("DQCSStatus = %s, want FAIR", got.DQCSStatus)
	}
}

func TestComputeKPIs_REIFormula(t *testing.T) {
	// rcr = 100%, rule_utilization = 1.0 (both rules hit), speed_factor = 1 + 1/10 = 1.1
	// success_rate = 1.0; rei = 1.0 * 1.0 * 1.1 / 10000
	got := ComputeKPIs(100, 100, 1.0, 0, []int64{5, 5}, 10)
	want := 1.0 * 1.0 * 1.1 / 10000
	if diff := got.REI - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("REI = %v, want %v", got.REI, want)
	}
}

func TestComputeKPIs_RuleUtilizationCountsOnlyRulesThatHit(t *testing.T) {
	util := ruleUtilizationOf([]int64{0, 3, 0, 7})
	if util != 0.5 {
		t.Fatalf("ruleUtilizationOf = %v, want 0.5", util)
	}
}

func TestComputeKPIs_IRRBucketsAtThresholds(t *testing.T) {
	cases := []struct {
		inactive, total int64
		want            string
	}{
		{2, 100, "EXCELLENT"},
		{5, 100, "EXCELLENT"},
		{8, 100, "GOOD"},
		{15, 100, "WARNING"},
		{25, 100, "CRITICAL"},
	}
	for _, c := range cases {
		got := ComputeKPIs(c.total, 0, 0, c.inactive, []int64{1}, 10)
		if got.IRRStatus != c.want {
			t.Errorf("inactive=%d total=%d: IRRStatus = %s, want %s", c.inactive, c.total, got.IRRStatus, c.want)
		}
	}
}

func TestComputeKPIs_ZeroTotalSourceAvoidsDivideByZero(t *testing.T) {
	got := ComputeKPIs(0, 0, 0, 0, nil, 10)
	if got.RCR != 0 || got.IRR != 0 {
		t.Fatalf("expected zero RCR/IRR with zero total source, got %+v", got)
	}
}
