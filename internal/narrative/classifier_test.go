package narrative

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/stresslens/internal/models"
)

var windowEnd = time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)

func restatementDoc(source, publishedAt string) models.Document {
	return models.Document{
		SourceType:  source,
		Title:       "Form 8-K",
		Body:        "the Company will restate previously issued financial statements",
		PublishedAt: publishedAt,
	}
}

func TestClassify_ConfirmedRestatementIsStructuralRisk(t *testing.T) {
	docs := []models.Document{restatementDoc(models.SourceSECFiling, "2025-11-15")}

	r := Classify(docs, Options{Ticker: "ACME", WindowEnd: windowEnd})

	assert.Equal(t, ClassAccountingRestatement, r.PrimaryEvent)
	assert.Equal(t, ShockStructuralRisk, r.ShockType)
	assert.Equal(t, 0.0, r.MdsPoints)
	assert.InDelta(t, 35.0, r.Severity, 1e-9)
	// Base structural 35 plus the confirmed-restatement escalation.
	assert.InDelta(t, 70.0, r.StructuralRisk, 1e-9)
	assert.Contains(t, r.Escalations, EscalationConfirmedRestate)
}

func TestClassify_UnconfirmedRestatementDowngradesToWeakTier(t *testing.T) {
	docs := []models.Document{restatementDoc(models.SourceNews, "2025-11-15")}

	r := Classify(docs, Options{WindowEnd: windowEnd})

	// Weak-tier points at news weight: 12 x 0.5.
	assert.InDelta(t, 6.0, r.Severity, 1e-9)
	assert.InDelta(t, 6.0, r.StructuralRisk, 1e-9)
	assert.Equal(t, PrimaryNone, r.PrimaryEvent)
	assert.Equal(t, ShockNone, r.ShockType)
	assert.Equal(t, 0.0, r.MdsPoints)
	assert.Empty(t, r.Escalations)
}

func TestClassify_TwoSourceTypesConfirmWithoutSECFiling(t *testing.T) {
	docs := []models.Document{
		restatementDoc(models.SourceNews, "2025-11-15"),
		restatementDoc(models.SourcePressRelease, "2025-11-15"),
	}

	r := Classify(docs, Options{WindowEnd: windowEnd})

	// Full severity honored: 35 x 0.5 + 35 x 0.7 = 42, under the 60 cap.
	assert.InDelta(t, 42.0, r.Severity, 1e-9)
	assert.Equal(t, ClassAccountingRestatement, r.PrimaryEvent)
	assert.Contains(t, r.Escalations, EscalationConfirmedRestate)
}

func TestClassify_RecencyDecayHalvesAtHalfLife(t *testing.T) {
	fresh := Classify(
		[]models.Document{restatementDoc(models.SourceSECFiling, "2025-11-15")},
		Options{WindowEnd: windowEnd},
	)
	aged := Classify(
		[]models.Document{restatementDoc(models.SourceSECFiling, "2025-11-05")},
		Options{WindowEnd: windowEnd},
	)

	assert.InDelta(t, fresh.Severity/2, aged.Severity, 1e-9)
}

func TestClassify_MacroRotationScoresTenPoints(t *testing.T) {
	docs := []models.Document{
		{
			SourceType:  models.SourceNews,
			Title:       "Markets slide",
			Body:        "a sector selloff hit industrials across the board",
			PublishedAt: "2025-11-15",
		},
		{
			SourceType:  models.SourceNews,
			Title:       "Rotation continues",
			Body:        "the sector rotation out of cyclicals accelerated",
			PublishedAt: "2025-11-14",
		},
	}

	r := Classify(docs, Options{WindowEnd: windowEnd})

	assert.Equal(t, ClassMacroRotation, r.PrimaryEvent)
	assert.Equal(t, ShockMacroRotation, r.ShockType)
	assert.Equal(t, 10.0, r.MdsPoints)
}

func TestClassify_OneOffShockScoresFifteenPoints(t *testing.T) {
	docs := []models.Document{
		{
			SourceType:  models.SourceEarningsRelease,
			Title:       "Q3 results",
			Body:        "management lowered full year guidance on softer demand",
			PublishedAt: "2025-11-15",
		},
	}

	r := Classify(docs, Options{WindowEnd: windowEnd})

	require.Equal(t, ClassGuidanceShock, r.PrimaryEvent)
	assert.Equal(t, ShockOneOff, r.ShockType)
	assert.Equal(t, 15.0, r.MdsPoints)
}

func TestClassify_RepeatedGuidanceMissesEscalate(t *testing.T) {
	docs := []models.Document{
		{
			SourceType:  models.SourceEarningsRelease,
			Body:        "the company lowered its guidance for the full year",
			PublishedAt: "2025-11-15",
		},
		{
			SourceType:  models.SourceNews,
			Body:        "results came in weaker than expected for a second straight quarter",
			PublishedAt: "2025-11-10",
		},
	}

	r := Classify(docs, Options{WindowEnd: windowEnd})

	assert.Contains(t, r.Escalations, EscalationRepeatedGuidance)
}

func TestClassify_CreditDistressCorroborationEscalates(t *testing.T) {
	docs := []models.Document{
		{
			SourceType:  models.SourceSECFiling,
			Body:        "the lender declared a covenant breach after a missed payment default",
			PublishedAt: "2025-11-15",
		},
	}

	r := Classify(docs, Options{WindowEnd: windowEnd})

	assert.Equal(t, ClassCreditLiquidity, r.PrimaryEvent)
	assert.Contains(t, r.Escalations, EscalationCreditCorroborated)
	assert.Equal(t, ShockStructuralRisk, r.ShockType)
	assert.Equal(t, 0.0, r.MdsPoints)
}

func TestClassify_DocsOutsideWindowAreIgnored(t *testing.T) {
	docs := []models.Document{restatementDoc(models.SourceSECFiling, "2025-09-01")}

	r := Classify(docs, Options{WindowEnd: windowEnd})

	assert.Equal(t, 0, r.DocsInWindow)
	assert.Equal(t, ShockNone, r.ShockType)
	assert.Contains(t, r.Warnings, WarnNoDocsInWindow)
}

func TestClassify_UnparseablePublishedAtExcludedWithWarning(t *testing.T) {
	docs := []models.Document{
		restatementDoc(models.SourceSECFiling, "last tuesday"),
		restatementDoc(models.SourceSECFiling, "2025-11-15"),
	}

	r := Classify(docs, Options{WindowEnd: windowEnd})

	assert.Equal(t, 1, r.DocsInWindow)
	assert.Contains(t, r.Warnings, WarnUnparseablePublishedAt)
}

func TestClassify_QualifierRequiredForCompositeMatch(t *testing.T) {
	docs := []models.Document{
		{
			SourceType:  models.SourceEarningsRelease,
			Body:        "full year guidance reaffirmed on strong bookings",
			PublishedAt: "2025-11-15",
		},
	}

	r := Classify(docs, Options{WindowEnd: windowEnd})

	_, matched := r.ClassScores[ClassGuidanceShock]
	assert.False(t, matched)
	assert.Equal(t, ShockNone, r.ShockType)
}

func TestClassify_Idempotent(t *testing.T) {
	docs := []models.Document{
		restatementDoc(models.SourceSECFiling, "2025-11-12"),
		{
			SourceType:  models.SourceNews,
			Body:        "a class action lawsuit was filed against the company",
			PublishedAt: "2025-11-10",
		},
	}
	opts := Options{Ticker: "ACME", WindowEnd: windowEnd}

	first := Classify(docs, opts)
	second := Classify(docs, opts)

	assert.Equal(t, first, second)
}

func TestClassify_DefaultWindowEndIsLatestDocDate(t *testing.T) {
	docs := []models.Document{
		restatementDoc(models.SourceSECFiling, "2025-11-12"),
		restatementDoc(models.SourceSECFiling, "2025-10-01"),
	}

	r := Classify(docs, Options{})

	assert.Equal(t, "2025-11-12", r.WindowEnd)
	// The October doc falls outside the default 30-day window.
	assert.Equal(t, 1, r.DocsInWindow)
}

func TestNormalize_StripsPunctuationKeepsMoneyAndPercent(t *testing.T) {
	got := Normalize("S&P cut; Moody's too! Margin fell to 4.5% ($1.2B).")
	assert.Equal(t, "s p cut moody s too margin fell to 4.5% $1.2b .", got)
}

func TestStripHTML_ExtractsVisibleText(t *testing.T) {
	html := `<html><head><style>p{color:red}</style></head><body><p>guidance was lowered</p></body></html>`
	got := Normalize(StripHTML(html))
	assert.Contains(t, got, "guidance was lowered")
}

func TestOverrides_ApplyMergesShallowly(t *testing.T) {
	days := 7
	weight := 0.25
	o := &Overrides{
		WindowDays:    &days,
		SourceWeights: map[string]float64{"NEWS": weight},
	}

	p := o.Apply(nil)

	assert.Equal(t, 7, p.WindowDays)
	assert.Equal(t, 0.25, p.SourceWeights["NEWS"])
	// Untouched keys keep defaults.
	assert.Equal(t, 10.0, p.RecencyHalfLifeDays)
	assert.Equal(t, 1.0, p.SourceWeights["SEC_FILING"])
	// Defaults themselves are not mutated.
	assert.Equal(t, 0.5, DefaultParams().SourceWeights["NEWS"])
}
