package fraud

import (
	"math"

	"github.com/lumenlearn/pvs/internal/domain"
	"github.com/lumenlearn/pvs/pkg/config"
	"github.com/lumenlearn/pvs/pkg/currency"
)

// Signal is one weighted fraud indicator. The score is a fold over the fired
// signals, summed then clamped to [0,1], so ordering never matters.
type Signal struct {
	Name   string
	Weight float64
}

var (
	SignalImageManipulation  = Signal{"ai_image_manipulation", 0.30}
	SignalInconsistentFonts  = Signal{"ai_inconsistent_fonts", 0.20}
	SignalBlurredEditRegions = Signal{"ai_blurred_edit_regions", 0.20}
	SignalWatermarkAnomaly   = Signal{"ai_watermark_anomaly", 0.30}
	SignalExifInconsistency  = Signal{"ai_exif_inconsistency", 0.20}
	SignalDuplicateImage     = Signal{"duplicate_proof_image", 0.40}
	SignalDuplicateTxRef     = Signal{"duplicate_tx_reference", 0.50}
	SignalUnknownFormat      = Signal{"unknown_receipt_format", 0.10}
	SignalMethodMismatch     = Signal{"method_mismatch", 0.20}
	SignalAmountInconsistent = Signal{"receipt_amount_inconsistent", 0.30}
	SignalAmountDeviation    = Signal{"extracted_amount_deviation", 0.20}
)

// amountDeviationTolerance: extracted amount may differ from the declared
// amount by up to 5% relative or 0.01 absolute, whichever is larger.
const (
	amountDeviationRelative = 0.05
	amountDeviationAbsolute = 0.01
)

// Input carries everything the scorer needs. The duplicate counts come from
// store lookups and are filled in even when the AI extraction call failed.
type Input struct {
	Receipt         *domain.ExtractedReceipt
	ExtractFailed   bool
	DuplicateImages int
	DuplicateRefs   int
	DeclaredAmount  float64
	DeclaredMethod  string
}

type Scorer struct {
	cfg config.FraudConfig
}

func NewScorer(cfg config.FraudConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score is a pure function of its input: no I/O, no clock, no mutation.
func (s *Scorer) Score(in Input) domain.FraudAssessment {
	fired := s.firedSignals(in)

	if in.ExtractFailed {
		return s.degraded(fired)
	}

	var total float64
	names := make([]string, 0, len(fired))
	for _, sig := range fired {
		total += sig.Weight
		names = append(names, sig.Name)
	}
	score := clamp01(total)

	confidence := 0.0
	if in.Receipt != nil {
		confidence = in.Receipt.Confidence
	}

	assessment := domain.FraudAssessment{
		FraudScore:    score,
		Confidence:    confidence,
		AutoApproved:  confidence > s.cfg.AutoApproveConfidence && score < s.cfg.AutoApproveMaxScore,
		NeedsReview:   confidence >= s.cfg.ReviewMinConfidence && confidence <= s.cfg.AutoApproveConfidence,
		LowConfidence: confidence < s.cfg.ReviewMinConfidence,
		Signals:       names,
	}
	assessment.ValidationStatus = collapse(assessment)
	assessment.Recommendations = recommend(assessment)
	return assessment
}

// firedSignals evaluates every signal in a fixed order. Duplicate checks do
// not depend on the AI call at all.
func (s *Scorer) firedSignals(in Input) []Signal {
	var fired []Signal

	if in.DuplicateImages > 0 {
		fired = append(fired, SignalDuplicateImage)
	}
	if in.DuplicateRefs > 0 {
		fired = append(fired, SignalDuplicateTxRef)
	}

	r := in.Receipt
	if in.ExtractFailed || r == nil {
		return fired
	}

	if r.Indicators.ImageManipulation {
		fired = append(fired, SignalImageManipulation)
	}
	if r.Indicators.InconsistentFonts {
		fired = append(fired, SignalInconsistentFonts)
	}
	if r.Indicators.BlurredEditRegions {
		fired = append(fired, SignalBlurredEditRegions)
	}
	if r.Indicators.WatermarkAnomaly {
		fired = append(fired, SignalWatermarkAnomaly)
	}
	if r.Indicators.ExifInconsistency {
		fired = append(fired, SignalExifInconsistency)
	}
	if !r.FormatKnown {
		fired = append(fired, SignalUnknownFormat)
	}
	if !r.MethodMatches {
		fired = append(fired, SignalMethodMismatch)
	}
	if !r.AmountsConsist {
		fired = append(fired, SignalAmountInconsistent)
	}
	if r.Amount != nil && amountDeviates(*r.Amount, in.DeclaredAmount) {
		fired = append(fired, SignalAmountDeviation)
	}
	return fired
}

// degraded is the fixed result when the AI call is unavailable: maximally
// suspicious, never an error. Duplicate signals that fired are still
// surfaced for forensics.
func (s *Scorer) degraded(fired []Signal) domain.FraudAssessment {
	names := make([]string, 0, len(fired)+1)
	for _, sig := range fired {
		names = append(names, sig.Name)
	}
	names = append(names, "extraction_unavailable")

	return domain.FraudAssessment{
		FraudScore:       1.0,
		Confidence:       0,
		LowConfidence:    true,
		ValidationStatus: domain.ValidationInvalid,
		Signals:          names,
		Recommendations:  []string{"manual review required"},
	}
}

// amountDeviates applies the wider of the relative and absolute tolerances,
// so tiny declared amounts are governed by the absolute floor.
func amountDeviates(extracted, declared float64) bool {
	if math.Abs(extracted-declared) <= amountDeviationAbsolute {
		return false
	}
	if declared == 0 {
		return true
	}
	return currency.RelativeDeviation(extracted, declared) > amountDeviationRelative
}

// collapse maps the three bands to exactly one UI-facing status:
// auto-approval always wins, then low confidence, else unclear.
func collapse(a domain.FraudAssessment) domain.ValidationStatus {
	switch {
	case a.AutoApproved:
		return domain.ValidationValid
	case a.LowConfidence:
		return domain.ValidationInvalid
	default:
		return domain.ValidationUnclear
	}
}

func recommend(a domain.FraudAssessment) []string {
	var recs []string
	if a.AutoApproved {
		return recs
	}
	if a.LowConfidence {
		recs = append(recs, "manual review required")
	} else {
		recs = append(recs, "hold for manual review")
	}
	if a.FraudScore >= 0.5 {
		recs = append(recs, "request an alternative proof of payment")
	}
	return recs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
