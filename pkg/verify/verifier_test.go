package verify_test

import (
	"context"
	"strings"
	"testing"

	"github.com/nexus-rd/nexus/internal/testutil"
	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/verify"
)

func highAuthority(name string) []domain.EvidenceSource {
	return []domain.EvidenceSource{
		{Type: "paper", Name: name, AuthorityScore: 0.9},
	}
}

func lowAuthority(name string) []domain.EvidenceSource {
	return []domain.EvidenceSource{
		{Type: "web", Name: name, AuthorityScore: 0.3},
	}
}

func TestVerifier_CounterEvidenceDisputes(t *testing.T) {
	searcher := testutil.NewMockSearcher()
	searcher.SearchFunc = func(ctx context.Context, query string, limit int) ([]domain.EvidenceSource, error) {
		if strings.Contains(query, "contradicting") {
			return highAuthority("rebuttal-study"), nil
		}
		return highAuthority("supporting-study"), nil
	}

	v := verify.New(searcher, verify.DefaultConfig(), nil, nil)
	claim := testutil.NewTestClaim("c1", "solid-state batteries ship at scale in 2026", 0.8)

	verdicts, summary, err := v.VerifyAll(context.Background(), []domain.Claim{claim})
	testutil.AssertNoError(t, err, "VerifyAll")

	if !verdicts[0].Disputed {
		t.Error("claim with counter-evidence not disputed")
	}
	if verdicts[0].Confidence != 0.4 {
		t.Errorf("disputed confidence = %v, want 0.4", verdicts[0].Confidence)
	}
	if len(verdicts[0].CounterEvidence) == 0 {
		t.Error("counter-evidence not recorded on verdict")
	}
	if summary.DisputedClaims != 1 {
		t.Errorf("disputed count = %d, want 1", summary.DisputedClaims)
	}
}

func TestVerifier_CorroborationRaisesConfidence(t *testing.T) {
	searcher := testutil.NewMockSearcher()
	searcher.SearchFunc = func(ctx context.Context, query string, limit int) ([]domain.EvidenceSource, error) {
		if strings.Contains(query, "contradicting") {
			return nil, nil
		}
		return highAuthority("supporting-study"), nil
	}

	v := verify.New(searcher, verify.DefaultConfig(), nil, nil)
	claim := testutil.NewTestClaim("c1", "sulfide electrolytes lead conductivity benchmarks", 0.6)

	verdicts, summary, err := v.VerifyAll(context.Background(), []domain.Claim{claim})
	testutil.AssertNoError(t, err, "VerifyAll")

	if verdicts[0].Disputed {
		t.Error("corroborated claim marked disputed")
	}
	if verdicts[0].Confidence != 0.9 {
		t.Errorf("corroborated confidence = %v, want 0.9", verdicts[0].Confidence)
	}
	if summary.ConfirmedClaims != 1 {
		t.Errorf("confirmed count = %d, want 1", summary.ConfirmedClaims)
	}
}

func TestVerifier_WeakEvidenceLeavesConfidenceUnchanged(t *testing.T) {
	searcher := testutil.NewMockSearcher()
	searcher.SearchFunc = func(ctx context.Context, query string, limit int) ([]domain.EvidenceSource, error) {
		return lowAuthority("forum-post"), nil
	}

	v := verify.New(searcher, verify.DefaultConfig(), nil, nil)
	claim := testutil.NewTestClaim("c1", "unverifiable niche claim", 0.55)

	verdicts, _, err := v.VerifyAll(context.Background(), []domain.Claim{claim})
	testutil.AssertNoError(t, err, "VerifyAll")

	if verdicts[0].Disputed {
		t.Error("claim with only weak evidence marked disputed")
	}
	if verdicts[0].Confidence != 0.55 {
		t.Errorf("confidence = %v, want unchanged 0.55", verdicts[0].Confidence)
	}
}

func TestVerifier_LookupFailureIsAbsorbed(t *testing.T) {
	searcher := testutil.NewMockSearcher()
	searcher.ShouldError = true
	searcher.ErrorMessage = "search backend down"

	v := verify.New(searcher, verify.DefaultConfig(), nil, nil)
	claim := testutil.NewTestClaim("c1", "some claim", 0.7)

	verdicts, summary, err := v.VerifyAll(context.Background(), []domain.Claim{claim})
	testutil.AssertNoError(t, err, "VerifyAll with failing searcher")

	if verdicts[0].Disputed {
		t.Error("lookup failure marked claim disputed")
	}
	if verdicts[0].Confidence != 0.7 {
		t.Errorf("confidence = %v, want unchanged 0.7", verdicts[0].Confidence)
	}
	if summary.TotalClaims != 1 {
		t.Errorf("total claims = %d, want 1", summary.TotalClaims)
	}
}

func TestVerifier_InputClaimsNotMutated(t *testing.T) {
	searcher := testutil.NewMockSearcher()
	searcher.SearchFunc = func(ctx context.Context, query string, limit int) ([]domain.EvidenceSource, error) {
		if strings.Contains(query, "contradicting") {
			return highAuthority("rebuttal"), nil
		}
		return nil, nil
	}

	v := verify.New(searcher, verify.DefaultConfig(), nil, nil)
	claims := []domain.Claim{testutil.NewTestClaim("c1", "original claim", 0.8)}

	_, _, err := v.VerifyAll(context.Background(), claims)
	testutil.AssertNoError(t, err, "VerifyAll")

	if claims[0].Confidence != 0.8 {
		t.Errorf("input claim confidence mutated to %v", claims[0].Confidence)
	}
}

func TestVerifier_ClaimsSharingSourcesStayIndependent(t *testing.T) {
	searcher := testutil.NewMockSearcher()
	searcher.SearchFunc = func(ctx context.Context, query string, limit int) ([]domain.EvidenceSource, error) {
		if strings.Contains(query, "contradicting") {
			return nil, nil
		}
		return highAuthority("support for " + query), nil
	}

	// Claims extracted from one finding share a sources slice with spare
	// capacity, the way the orchestrator hands them over
	shared := make([]domain.EvidenceSource, 1, 8)
	shared[0] = domain.EvidenceSource{Type: "patent", Name: "shared-filing", AuthorityScore: 0.9}

	claims := make([]domain.Claim, 4)
	for i, text := range []string{"alpha", "beta", "gamma", "delta"} {
		claims[i] = testutil.NewTestClaim("c"+text, text, 0.5)
		claims[i].Sources = shared
	}

	cfg := verify.DefaultConfig()
	cfg.Concurrency = 4
	v := verify.New(searcher, cfg, nil, nil)

	verdicts, _, err := v.VerifyAll(context.Background(), claims)
	testutil.AssertNoError(t, err, "VerifyAll")

	for _, verdict := range verdicts {
		if len(verdict.Claim.Sources) != 2 {
			t.Fatalf("claim %s carries %d sources, want 2", verdict.Claim.ID, len(verdict.Claim.Sources))
		}
		want := "support for " + verdict.Claim.Text
		if got := verdict.Claim.Sources[1].Name; got != want {
			t.Errorf("claim %s carries evidence %q gathered for another claim, want %q",
				verdict.Claim.ID, got, want)
		}
	}

	if len(shared) != 1 || shared[0].Name != "shared-filing" {
		t.Errorf("input sources slice was mutated: %+v", shared)
	}
	for i, claim := range claims {
		if len(claim.Sources) != 1 {
			t.Errorf("input claim %d sources grew to %d", i, len(claim.Sources))
		}
	}
}

func TestVerifier_PreservesClaimOrder(t *testing.T) {
	searcher := testutil.NewMockSearcher()

	cfg := verify.DefaultConfig()
	cfg.Concurrency = 3
	v := verify.New(searcher, cfg, nil, nil)

	claims := []domain.Claim{
		testutil.NewTestClaim("c1", "first", 0.5),
		testutil.NewTestClaim("c2", "second", 0.5),
		testutil.NewTestClaim("c3", "third", 0.5),
		testutil.NewTestClaim("c4", "fourth", 0.5),
	}

	verdicts, _, err := v.VerifyAll(context.Background(), claims)
	testutil.AssertNoError(t, err, "VerifyAll")

	for i, verdict := range verdicts {
		if verdict.Claim.ID != claims[i].ID {
			t.Errorf("verdict %d is for claim %s, want %s", i, verdict.Claim.ID, claims[i].ID)
		}
	}
}

func TestVerifier_ConfigurableBands(t *testing.T) {
	searcher := testutil.NewMockSearcher()
	searcher.SearchFunc = func(ctx context.Context, query string, limit int) ([]domain.EvidenceSource, error) {
		if strings.Contains(query, "contradicting") {
			return highAuthority("rebuttal"), nil
		}
		return nil, nil
	}

	cfg := verify.DefaultConfig()
	cfg.DisputedBand = 0.25
	v := verify.New(searcher, cfg, nil, nil)

	verdicts, _, err := v.VerifyAll(context.Background(), []domain.Claim{
		testutil.NewTestClaim("c1", "claim", 0.8),
	})
	testutil.AssertNoError(t, err, "VerifyAll")

	if verdicts[0].Confidence != 0.25 {
		t.Errorf("confidence = %v, want configured band 0.25", verdicts[0].Confidence)
	}
}

func TestVerifier_CancelledContext(t *testing.T) {
	searcher := testutil.NewMockSearcher()
	v := verify.New(searcher, verify.DefaultConfig(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	claims := []domain.Claim{testutil.NewTestClaim("c1", "claim", 0.5)}
	_, _, err := v.VerifyAll(ctx, claims)
	testutil.AssertError(t, err, "VerifyAll with cancelled context")
}
