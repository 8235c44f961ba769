package narrative

import "strings"

// Event class names. Order in classTable is priority order: when two classes
// tie on score, the earlier one wins primary selection.
const (
	ClassAccountingRestatement  = "ACCOUNTING_RESTATEMENT"
	ClassFraudInternalControl   = "FRAUD_INTERNAL_CONTROL"
	ClassRegulatoryAction       = "REGULATORY_ACTION"
	ClassLitigation             = "LITIGATION"
	ClassExecutiveChange        = "EXECUTIVE_CHANGE"
	ClassGuidanceShock          = "GUIDANCE_SHOCK"
	ClassProductRecall          = "PRODUCT_RECALL"
	ClassCyberIncident          = "CYBER_INCIDENT"
	ClassCreditLiquidity        = "CREDIT_LIQUIDITY_DISTRESS"
	ClassContractCustomerLoss   = "CONTRACT_CUSTOMER_LOSS"
	ClassMAStrategicReview      = "MA_STRATEGIC_REVIEW"
	ClassCapitalStructureAction = "CAPITAL_STRUCTURE_ACTION"
	ClassMacroRotation          = "MACRO_ROTATION"
	ClassStructuralModelRisk    = "STRUCTURAL_MODEL_RISK"
)

// Pattern is a tagged variant: a literal substring, or a composite requiring
// every RequiredAll substring plus, when AnyOf is non-empty, at least one of
// those qualifiers.
type Pattern struct {
	Literal     string
	RequiredAll []string
	AnyOf       []string
	Label       string
}

func lit(s string) Pattern { return Pattern{Literal: s} }

func comp(label string, requiredAll []string, anyOf ...string) Pattern {
	return Pattern{RequiredAll: requiredAll, AnyOf: anyOf, Label: label}
}

// matches reports whether the normalized text satisfies the pattern and how
// many times. Literal patterns count occurrences; composite patterns are
// presence-only and count at most 1.
func (p Pattern) matches(text string) (int, bool) {
	if p.Literal != "" {
		n := strings.Count(text, p.Literal)
		return n, n > 0
	}
	for _, req := range p.RequiredAll {
		if !strings.Contains(text, req) {
			return 0, false
		}
	}
	if len(p.AnyOf) > 0 {
		found := false
		for _, q := range p.AnyOf {
			if strings.Contains(text, q) {
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return 1, true
}

// label names the pattern for attribution output.
func (p Pattern) label() string {
	if p.Literal != "" {
		return p.Literal
	}
	return p.Label
}

// EventClass is one entry of the shock taxonomy with its match patterns and
// point schedule. Severity and structural subtotals are each capped at Cap.
type EventClass struct {
	Name                 string
	Macro                bool
	ConfirmationRequired bool
	Strong               []Pattern
	Weak                 []Pattern
	StrongSeverity       float64
	WeakSeverity         float64
	StrongStructural     float64
	WeakStructural       float64
	Cap                  float64
}

// classTable is the built-in taxonomy in priority order. Pattern spellings
// assume normalized text: lowercase, punctuation outside %$.- replaced by
// spaces ("S&P" becomes "s p", "Moody's" becomes "moody s").
var classTable = []EventClass{
	{
		Name:                 ClassAccountingRestatement,
		ConfirmationRequired: true,
		Strong: []Pattern{
			comp("restatement of issued financials", []string{"restate", "financial statements"}),
			lit("non-reliance on previously issued"),
			lit("will restate"),
		},
		Weak: []Pattern{
			lit("restatement"),
			lit("accounting error"),
			lit("accounting review"),
		},
		StrongSeverity: 35, WeakSeverity: 12,
		StrongStructural: 35, WeakStructural: 12,
		Cap: 60,
	},
	{
		Name:                 ClassFraudInternalControl,
		ConfirmationRequired: true,
		Strong: []Pattern{
			lit("material weakness in internal control"),
			comp("fraud investigation", []string{"fraud"}, "investigation", "probe", "charges"),
			lit("accounting fraud"),
		},
		Weak: []Pattern{
			lit("material weakness"),
			lit("whistleblower"),
			lit("internal investigation"),
		},
		StrongSeverity: 32, WeakSeverity: 12,
		StrongStructural: 32, WeakStructural: 12,
		Cap: 55,
	},
	{
		Name: ClassRegulatoryAction,
		Strong: []Pattern{
			lit("wells notice"),
			lit("consent decree"),
			comp("sec enforcement", []string{"securities and exchange commission"}, "investigation", "enforcement", "subpoena"),
			comp("doj action", []string{"department of justice"}, "investigation", "indictment", "subpoena"),
		},
		Weak: []Pattern{
			lit("regulatory scrutiny"),
			lit("antitrust"),
			lit("subpoena"),
		},
		StrongSeverity: 22, WeakSeverity: 8,
		StrongStructural: 18, WeakStructural: 6,
		Cap: 40,
	},
	{
		Name: ClassLitigation,
		Strong: []Pattern{
			lit("class action lawsuit"),
			lit("securities litigation"),
			comp("adverse verdict", []string{"verdict"}, "jury", "damages"),
		},
		Weak: []Pattern{
			lit("lawsuit"),
			lit("litigation"),
		},
		StrongSeverity: 18, WeakSeverity: 6,
		StrongStructural: 12, WeakStructural: 4,
		Cap: 32,
	},
	{
		Name: ClassExecutiveChange,
		Strong: []Pattern{
			comp("ceo departure", []string{"chief executive"}, "resign", "resigned", "departure", "step down", "stepping down", "terminated"),
			comp("cfo departure", []string{"chief financial"}, "resign", "resigned", "departure", "step down", "stepping down", "terminated"),
		},
		Weak: []Pattern{
			lit("interim ceo"),
			lit("leadership change"),
			lit("management transition"),
		},
		StrongSeverity: 16, WeakSeverity: 6,
		StrongStructural: 10, WeakStructural: 3,
		Cap: 28,
	},
	{
		Name: ClassGuidanceShock,
		Strong: []Pattern{
			comp("guidance cut", []string{"guidance"}, "cut", "lowered", "lower", "withdrawn", "withdraw", "suspended"),
			lit("profit warning"),
			comp("outlook reduction", []string{"outlook"}, "reduced", "lowered", "withdrawn"),
		},
		Weak: []Pattern{
			lit("below expectations"),
			lit("weaker than expected"),
			lit("missed estimates"),
		},
		StrongSeverity: 20, WeakSeverity: 8,
		StrongStructural: 14, WeakStructural: 5,
		Cap: 38,
	},
	{
		Name: ClassProductRecall,
		Strong: []Pattern{
			comp("product recall", []string{"recall"}, "voluntary", "safety", "defect"),
			lit("stop sale"),
		},
		Weak: []Pattern{
			lit("recall"),
			lit("product defect"),
		},
		StrongSeverity: 18, WeakSeverity: 6,
		StrongStructural: 10, WeakStructural: 3,
		Cap: 30,
	},
	{
		Name: ClassCyberIncident,
		Strong: []Pattern{
			lit("ransomware"),
			lit("data breach"),
			lit("cybersecurity incident"),
		},
		Weak: []Pattern{
			lit("unauthorized access"),
			lit("security incident"),
		},
		StrongSeverity: 18, WeakSeverity: 6,
		StrongStructural: 10, WeakStructural: 3,
		Cap: 30,
	},
	{
		Name: ClassCreditLiquidity,
		Strong: []Pattern{
			lit("going concern"),
			lit("covenant breach"),
			lit("chapter 11"),
			comp("rating downgrade", []string{"downgraded"}, "moody s", "s p", "fitch"),
			comp("covenant default", []string{"covenant"}, "default", "waiver", "breach"),
		},
		Weak: []Pattern{
			lit("liquidity concerns"),
			lit("debt maturity"),
			lit("refinancing risk"),
		},
		StrongSeverity: 28, WeakSeverity: 10,
		StrongStructural: 28, WeakStructural: 10,
		Cap: 50,
	},
	{
		Name: ClassContractCustomerLoss,
		Strong: []Pattern{
			comp("contract termination", []string{"contract"}, "terminated", "termination", "cancelled", "canceled", "cancellation"),
			comp("major customer loss", []string{"customer"}, "lost", "loss of", "non-renewal"),
		},
		Weak: []Pattern{
			lit("customer concentration"),
			lit("non-renewal"),
		},
		StrongSeverity: 18, WeakSeverity: 6,
		StrongStructural: 12, WeakStructural: 4,
		Cap: 30,
	},
	{
		Name: ClassMAStrategicReview,
		Strong: []Pattern{
			lit("strategic alternatives"),
			comp("definitive deal", []string{"acquisition"}, "definitive agreement", "agreement to acquire"),
			lit("take-private"),
		},
		Weak: []Pattern{
			lit("strategic review"),
			lit("activist investor"),
			lit("merger"),
		},
		StrongSeverity: 14, WeakSeverity: 5,
		StrongStructural: 4, WeakStructural: 1,
		Cap: 24,
	},
	{
		Name: ClassCapitalStructureAction,
		Strong: []Pattern{
			comp("dividend cut", []string{"dividend"}, "cut", "suspended", "suspend", "eliminated"),
			lit("dilutive offering"),
			lit("rights offering"),
		},
		Weak: []Pattern{
			lit("equity offering"),
			lit("convertible notes"),
			lit("capital raise"),
		},
		StrongSeverity: 16, WeakSeverity: 6,
		StrongStructural: 12, WeakStructural: 4,
		Cap: 28,
	},
	{
		Name:  ClassMacroRotation,
		Macro: true,
		Strong: []Pattern{
			comp("sector rotation", []string{"sector"}, "rotation", "selloff", "sell-off"),
			lit("broad market decline"),
			lit("risk-off"),
		},
		Weak: []Pattern{
			lit("macro headwinds"),
			lit("interest rates"),
			lit("rate environment"),
		},
		StrongSeverity: 12, WeakSeverity: 5,
		StrongStructural: 0, WeakStructural: 0,
		Cap: 24,
	},
	{
		Name: ClassStructuralModelRisk,
		Strong: []Pattern{
			lit("secular decline"),
			comp("model disruption", []string{"business model"}, "obsolete", "disruption", "disrupted"),
			lit("structural headwinds"),
		},
		Weak: []Pattern{
			lit("market share losses"),
			lit("pricing pressure"),
			lit("declining industry"),
		},
		StrongSeverity: 22, WeakSeverity: 8,
		StrongStructural: 25, WeakStructural: 9,
		Cap: 40,
	},
}

// creditCorroboration are the phrases that confirm credit distress for the
// structural escalation bonus.
var creditCorroboration = []string{
	"default",
	"forbearance",
	"missed payment",
	"restructuring advisors",
	"debtor in possession",
}

// Classes returns a copy of the built-in taxonomy.
func Classes() []EventClass {
	out := make([]EventClass, len(classTable))
	copy(out, classTable)
	return out
}
