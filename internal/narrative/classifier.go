// Package narrative classifies dated text documents (filings, releases,
// news) into a fixed taxonomy of shock event classes and scores their
// severity and structural risk. Classification is deterministic: same
// documents, window, and params always produce the same result.
package narrative

import (
	"math"
	"time"

	"github.com/sawpanic/stresslens/internal/models"
)

// Warning is a degraded-input code. The set is closed so tests can assert
// exact membership.
type Warning string

const (
	WarnNoDocsInWindow         Warning = "no_docs_in_window"
	WarnUnparseablePublishedAt Warning = "unparseable_published_at"
	WarnUnknownSourceType      Warning = "unknown_source_type"
)

// Shock types.
const (
	ShockMacroRotation  = "MACRO_ROTATION"
	ShockStructuralRisk = "STRUCTURAL_RISK"
	ShockOneOff         = "ONE_OFF"
	ShockNone           = "NONE"
)

// PrimaryNone marks the absence of a qualifying event class.
const PrimaryNone = "NONE"

// Escalation labels reported when a cross-signal bonus fires.
const (
	EscalationCreditCorroborated = "credit_distress_corroborated"
	EscalationRepeatedGuidance   = "repeated_guidance_misses"
	EscalationConfirmedRestate   = "confirmed_restatement"
)

// ClassScore is the per-class contribution to the result.
type ClassScore struct {
	Severity   float64  `json:"severity"`
	Structural float64  `json:"structural"`
	Patterns   []string `json:"patterns,omitempty"`
	Docs       int      `json:"docs"`
}

// Result is the classifier output.
type Result struct {
	Ticker         string                `json:"ticker,omitempty"`
	WindowStart    string                `json:"window_start"`
	WindowEnd      string                `json:"window_end"`
	DocsInWindow   int                   `json:"docs_in_window"`
	PrimaryEvent   string                `json:"primary_event"`
	ShockType      string                `json:"shock_type"`
	Severity       float64               `json:"severity"`
	StructuralRisk float64               `json:"structural_risk"`
	MdsPoints      float64               `json:"mds_narrative_shock_points"`
	ClassScores    map[string]ClassScore `json:"class_scores,omitempty"`
	Escalations    []string              `json:"escalations,omitempty"`
	Warnings       []Warning             `json:"warnings,omitempty"`
}

// Options select the subject, the window anchor, and parameter overrides for
// one classification call.
type Options struct {
	Ticker string
	// WindowEnd anchors the classification window. Zero means "latest
	// parseable published_at across docs", falling back to the current
	// time when no document carries a usable date.
	WindowEnd time.Time
	Params    *Params
}

type hit struct {
	label  string
	weight float64
	count  int
}

type classAccum struct {
	strong  []hit
	weak    []hit
	sources map[string]struct{}
	docs    map[int]struct{}
}

func decay(ageDays, halfLife float64) float64 {
	if halfLife <= 0 {
		return 1
	}
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-math.Ln2 * ageDays / halfLife)
}

func clamp100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// Classify runs the taxonomy over docs within the classification window and
// maps the outcome to a shock type and MDS point contribution.
func Classify(docs []models.Document, opts Options) Result {
	params := opts.Params
	if params == nil {
		params = DefaultParams()
	}

	var warnings []Warning

	published := make([]time.Time, len(docs))
	parseable := make([]bool, len(docs))
	sawUnparseable := false
	for i, d := range docs {
		published[i], parseable[i] = models.ParsePeriod(d.PublishedAt)
		if !parseable[i] {
			sawUnparseable = true
		}
	}
	if sawUnparseable {
		warnings = append(warnings, WarnUnparseablePublishedAt)
	}

	windowEnd := opts.WindowEnd
	if windowEnd.IsZero() {
		for i := range docs {
			if parseable[i] && published[i].After(windowEnd) {
				windowEnd = published[i]
			}
		}
		if windowEnd.IsZero() {
			windowEnd = time.Now().UTC()
		}
	}
	windowStart := windowEnd.AddDate(0, 0, -params.WindowDays)

	type prepared struct {
		index  int
		source string
		weight float64
		text   string
	}
	var inWindow []prepared
	sawUnknownSource := false
	for i, d := range docs {
		if !parseable[i] {
			continue
		}
		if published[i].Before(windowStart) || published[i].After(windowEnd) {
			continue
		}
		srcWeight, ok := params.SourceWeights[d.SourceType]
		if !ok {
			srcWeight = params.SourceWeights[models.SourceNews]
			if srcWeight == 0 {
				srcWeight = 0.5
			}
			sawUnknownSource = true
		}
		age := windowEnd.Sub(published[i]).Hours() / 24
		inWindow = append(inWindow, prepared{
			index:  i,
			source: d.SourceType,
			weight: srcWeight * decay(age, params.RecencyHalfLifeDays),
			text:   Normalize(StripHTML(d.Title + " " + d.Body)),
		})
	}
	if sawUnknownSource {
		warnings = append(warnings, WarnUnknownSourceType)
	}

	result := Result{
		Ticker:       opts.Ticker,
		WindowStart:  windowStart.Format("2006-01-02"),
		WindowEnd:    windowEnd.Format("2006-01-02"),
		DocsInWindow: len(inWindow),
		PrimaryEvent: PrimaryNone,
		ShockType:    ShockNone,
		Warnings:     warnings,
	}
	if len(inWindow) == 0 {
		result.Warnings = append(result.Warnings, WarnNoDocsInWindow)
		return result
	}

	accums := make([]classAccum, len(classTable))
	for i := range accums {
		accums[i].sources = make(map[string]struct{})
		accums[i].docs = make(map[int]struct{})
	}
	for _, doc := range inWindow {
		for ci, cls := range classTable {
			acc := &accums[ci]
			matched := false
			// The strong tier is credited once per document: the first
			// matching pattern in table order wins.
			for _, p := range cls.Strong {
				if _, ok := p.matches(doc.text); ok {
					acc.strong = append(acc.strong, hit{label: p.label(), weight: doc.weight, count: 1})
					matched = true
					break
				}
			}
			for _, p := range cls.Weak {
				if n, ok := p.matches(doc.text); ok {
					acc.weak = append(acc.weak, hit{label: p.label(), weight: doc.weight, count: n})
					matched = true
				}
			}
			if matched {
				acc.sources[doc.source] = struct{}{}
				acc.docs[doc.index] = struct{}{}
			}
		}
	}

	classScores := make(map[string]ClassScore)
	severityTotal := 0.0
	structuralBase := 0.0
	bestIdx, bestSeverity := -1, 0.0
	macroSeverity := 0.0
	restatementConfirmed := false
	creditStrong := false
	guidanceDocs := 0

	for ci, cls := range classTable {
		acc := &accums[ci]
		if len(acc.docs) == 0 {
			continue
		}

		confirmed := true
		if cls.ConfirmationRequired && len(acc.strong) > 0 {
			_, hasSEC := acc.sources[models.SourceSECFiling]
			confirmed = hasSEC || len(acc.sources) >= 2
		}

		severity, structural := 0.0, 0.0
		var patterns []string
		seen := make(map[string]struct{})
		record := func(label string) {
			if _, dup := seen[label]; !dup {
				seen[label] = struct{}{}
				patterns = append(patterns, label)
			}
		}
		for _, h := range acc.strong {
			sevPts, strPts := cls.StrongSeverity, cls.StrongStructural
			if cls.ConfirmationRequired && !confirmed {
				sevPts, strPts = cls.WeakSeverity, cls.WeakStructural
			}
			severity += sevPts * h.weight
			structural += strPts * h.weight
			record(h.label)
		}
		for _, h := range acc.weak {
			severity += cls.WeakSeverity * h.weight * float64(h.count)
			structural += cls.WeakStructural * h.weight * float64(h.count)
			record(h.label)
		}
		severity = math.Min(severity, cls.Cap)
		structural = math.Min(structural, cls.Cap)

		classScores[cls.Name] = ClassScore{
			Severity:   severity,
			Structural: structural,
			Patterns:   patterns,
			Docs:       len(acc.docs),
		}
		severityTotal += severity
		structuralBase += structural

		if cls.Macro {
			if severity > macroSeverity {
				macroSeverity = severity
			}
		} else if severity > bestSeverity {
			bestIdx, bestSeverity = ci, severity
		}

		switch cls.Name {
		case ClassAccountingRestatement:
			restatementConfirmed = len(acc.strong) > 0 && confirmed
		case ClassCreditLiquidity:
			creditStrong = len(acc.strong) > 0
		case ClassGuidanceShock:
			guidanceDocs = len(acc.docs)
		}
	}

	structuralTotal := structuralBase
	var escalations []string
	if creditStrong {
		corroborated := false
		for _, doc := range inWindow {
			for _, phrase := range creditCorroboration {
				if phraseIn(doc.text, phrase) {
					corroborated = true
					break
				}
			}
			if corroborated {
				break
			}
		}
		if corroborated {
			structuralTotal += 30
			escalations = append(escalations, EscalationCreditCorroborated)
		}
	}
	if guidanceDocs >= 2 {
		structuralTotal += 20
		escalations = append(escalations, EscalationRepeatedGuidance)
	}
	if restatementConfirmed {
		structuralTotal += 35
		escalations = append(escalations, EscalationConfirmedRestate)
	}

	result.Severity = clamp100(severityTotal)
	result.StructuralRisk = clamp100(structuralTotal)
	result.ClassScores = classScores
	result.Escalations = escalations

	switch {
	case bestIdx >= 0 && bestSeverity >= params.MinEventScore:
		result.PrimaryEvent = classTable[bestIdx].Name
		if result.StructuralRisk >= params.StructuralThreshold {
			result.ShockType = ShockStructuralRisk
		} else {
			result.ShockType = ShockOneOff
		}
	case macroSeverity >= params.MacroThreshold:
		result.PrimaryEvent = ClassMacroRotation
		result.ShockType = ShockMacroRotation
	}

	switch result.ShockType {
	case ShockOneOff:
		result.MdsPoints = 15
	case ShockMacroRotation:
		result.MdsPoints = 10
	}
	return result
}

func phraseIn(text, phrase string) bool {
	_, ok := Pattern{Literal: phrase}.matches(text)
	return ok
}
