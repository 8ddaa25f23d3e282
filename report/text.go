package report

import (
	"fmt"
	"time"
)

// legalStatements produces the six declarations attached to every report.
func legalStatements(analysis TechnicalAnalysis, generatedAt time.Time) []string {
	return []string{
		"This report was generated by an automated analysis system and documents the findings of algorithmic examination of the submitted evidence.",
		fmt.Sprintf("The analysis classified the evidence as %q with a confidence score of %.2f on a scale of 0 to 1.", analysis.Prediction, analysis.ConfidenceScore),
		fmt.Sprintf("The examination was performed using the %s method against model version %s.", analysis.DetectionMethod, analysis.ModelVersion),
		"Cryptographic hashes of the original evidence file were computed at intake and are reproduced in the verification section of this report.",
		"The chain of custody section documents every handling event from evidence receipt through report generation.",
		fmt.Sprintf("This report was compiled on %s and its integrity hash covers the complete report content.", generatedAt.UTC().Format("2006-01-02")),
	}
}

var methodologies = map[string][]string{
	"deepfake": {
		"Evidence images are classified by a neural image classifier trained to separate authentic captures from synthetic or manipulated ones.",
		"Video evidence is decoded frame by frame; every Nth frame is classified and the verdict is the majority vote across sampled frames.",
		"The reported confidence is the arithmetic mean of per-frame confidences.",
	},
	"object": {
		"Evidence images are processed by an object detection model that locates and labels objects with bounding boxes.",
		"Video evidence is sampled at a fixed frame interval; detections are aggregated and the most frequent class becomes the primary finding.",
	},
	"fraud": {
		"Transactions are scored by a weighted rule model over amount, time of day, merchant risk, user history, location risk, and device fingerprint.",
		"Scores above the configured threshold are classified as fraudulent; batch submissions are scored row by row.",
		"Document evidence is examined for indicators of tampering such as text inconsistency and image manipulation.",
	},
}

var genericMethodology = []string{
	"The evidence was processed by the standard automated analysis pipeline for its detection category.",
	"All findings were recorded together with cryptographic integrity hashes of the original evidence.",
}

// methodology returns the written method description for a detection type,
// falling back to the generic text for unrecognized types.
func methodology(detectionType string) []string {
	if m, ok := methodologies[detectionType]; ok {
		return m
	}
	return genericMethodology
}
