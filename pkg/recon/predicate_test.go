package recon

import (
	"strings"
	"testing"

	"github.com/3frameslab/kgrecon/pkg/rules"
)

func TestBuildRulePredicate_ExactMatchAndsColumnPairs(t *testing.T) {
	r := rules.Rule{
		RuleID: "r1", MatchType: rules.MatchExact,
		SourceColumns: []string{"customer_id", "region_id"},
		TargetColumns: []string{"cust_id", "region_id"},
	}
	clause, err := buildRulePredicate(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `s."customer_id" = t."cust_id" AND s."region_id" = t."region_id"`
	if clause != want {
		t.Fatalf("clause = %q, want %q", clause, want)
	}
}

func TestBuildRulePredicate_CompositeRuleRejected(t *testing.T) {
	r := rules.Rule{RuleID: "r2", MatchType: rules.MatchComposite}
	_, err := buildRulePredicate(r)
	if err == nil {
		t.Fatal("expected an error for a composite rule")
	}
}

func TestBuildRulePredicate_TransformationSubstitutesTokens(t *testing.T) {
	r := rules.Rule{
		RuleID: "r3", MatchType: rules.MatchTransformation,
		SourceColumns: []string{"name"}, TargetColumns: []string{"full_name"},
		Transformation: "UPPER(TRIM(x)) = UPPER(TRIM(y))",
	}
	clause, err := buildRulePredicate(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `UPPER(TRIM(s."name")) = UPPER(TRIM(t."full_name"))`
	if clause != want {
		t.Fatalf("clause = %q, want %q", clause, want)
	}
}

func TestBuildRulePredicate_FuzzyRequiresSingleColumnPair(t *testing.T) {
	r := rules.Rule{
		RuleID: "r4", MatchType: rules.MatchFuzzy,
		SourceColumns: []string{"name", "city"}, TargetColumns: []string{"full_name"},
		Transformation: "LEVENSHTEIN(a, b) < 3",
	}
	if _, err := buildRulePredicate(r); err == nil {
		t.Fatal("expected an error for mismatched fuzzy column counts")
	}
}

func TestRenderTransformation_DoesNotTouchUnrelatedIdentifiers(t *testing.T) {
	got := renderTransformation("LEVENSHTEIN(a, b) < 3", "max_amount", "amount")
	if strings.Contains(got, "amount_x") {
		t.Fatalf("unexpected token substitution inside identifier: %s", got)
	}
	want := `LEVENSHTEIN(s."max_amount", t."amount") < 3`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderRulePredicates_SkipsCompositeAndKeepsConfidence(t *testing.T) {
	executable := []rules.Rule{
		{RuleID: "a", MatchType: rules.MatchExact, SourceColumns: []string{"id"}, TargetColumns: []string{"id"}, Confidence: 0.95},
		{RuleID: "b", MatchType: rules.MatchComposite, Confidence: 0.7},
	}
	rendered, skipped, err := renderRulePredicates(executable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rendered) != 1 || rendered[0].confidence != 0.95 {
		t.Fatalf("rendered = %+v, want one entry with confidence 0.95", rendered)
	}
	if len(skipped) != 1 || skipped[0].RuleID != "b" {
		t.Fatalf("skipped = %+v, want rule b", skipped)
	}
}

func TestRenderRulePredicates_ErrorsWhenNothingRenders(t *testing.T) {
	executable := []rules.Rule{{RuleID: "only-composite", MatchType: rules.MatchComposite}}
	_, _, err := renderRulePredicates(executable)
	if err == nil {
		t.Fatal("expected an error when no rule can render")
	}
}
