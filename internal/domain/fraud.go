package domain

import "encoding/json"

// ValidationStatus is the UI-facing collapse of the fraud assessment.
type ValidationStatus string

const (
	ValidationValid   ValidationStatus = "valid"
	ValidationUnclear ValidationStatus = "unclear"
	ValidationInvalid ValidationStatus = "invalid"
)

// FraudIndicators are the image-forensics flags reported by the receipt
// extraction call.
type FraudIndicators struct {
	ImageManipulation  bool `json:"image_manipulation"`
	InconsistentFonts  bool `json:"inconsistent_fonts"`
	BlurredEditRegions bool `json:"blurred_edit_regions"`
	WatermarkAnomaly   bool `json:"watermark_anomaly"`
	ExifInconsistency  bool `json:"exif_inconsistency"`
}

// ExtractedReceipt is the structured result of the AI extraction call over a
// payment-proof image. Consumed as a black box.
type ExtractedReceipt struct {
	Amount          *float64        `json:"amount"`
	Currency        string          `json:"currency"`
	Method          string          `json:"method"`
	FromAddress     string          `json:"from_address"`
	ToAddress       string          `json:"to_address"`
	Confidence      float64         `json:"confidence"`
	Indicators      FraudIndicators `json:"fraud_indicators"`
	FormatKnown     bool            `json:"format_known"`
	MethodMatches   bool            `json:"method_matches"`
	AmountsConsist  bool            `json:"amounts_consistent"`
	AnalysisText    string          `json:"analysis_text"`
	RawAnalysis     json.RawMessage `json:"raw_analysis,omitempty"`
}

// FraudAssessment is the outcome of the submission-time fraud pass.
type FraudAssessment struct {
	FraudScore       float64          `json:"fraud_score"`
	Confidence       float64          `json:"confidence"`
	AutoApproved     bool             `json:"auto_approved"`
	NeedsReview      bool             `json:"needs_review"`
	LowConfidence    bool             `json:"low_confidence"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	Signals          []string         `json:"signals"`
	Recommendations  []string         `json:"recommendations"`
}
