package report

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	pageLines  = 44
	lineHeight = 16.0
	marginLeft = 50.0
	marginTop  = 60.0
)

type pdfText struct {
	Value    string     `json:"value"`
	Position [2]float64 `json:"position"`
	Font     pdfFont    `json:"font"`
}

type pdfFont struct {
	Name string  `json:"name"`
	Size float64 `json:"size"`
}

type pdfContent struct {
	Text []pdfText `json:"text"`
}

type pdfPage struct {
	Content pdfContent `json:"content"`
}

type pdfSpec struct {
	PaperSize string             `json:"paperSize"`
	Origin    string             `json:"origin"`
	Pages     map[string]pdfPage `json:"pages"`
}

// RenderPDF writes the report body to outPath as an A4 PDF. Layout is a
// paginated line flow in the report's fixed section order.
func RenderPDF(body Body, outPath string) error {
	spec := pdfSpec{
		PaperSize: "A4",
		Origin:    "upperLeft",
		Pages:     make(map[string]pdfPage),
	}

	lines := layoutLines(body)
	for start := 0; start < len(lines); start += pageLines {
		end := start + pageLines
		if end > len(lines) {
			end = len(lines)
		}
		page := pdfPage{}
		for i, line := range lines[start:end] {
			page.Content.Text = append(page.Content.Text, pdfText{
				Value:    line.text,
				Position: [2]float64{marginLeft, marginTop + float64(i)*lineHeight},
				Font:     pdfFont{Name: line.fontName(), Size: line.fontSize()},
			})
		}
		spec.Pages[strconv.Itoa(start/pageLines+1)] = page
	}

	specJSON, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encoding page layout: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	if err := api.Create(nil, bytes.NewReader(specJSON), f, nil); err != nil {
		return fmt.Errorf("rendering report pdf: %w", err)
	}
	return nil
}

type line struct {
	text    string
	heading bool
}

func (l line) fontName() string {
	if l.heading {
		return "Helvetica-Bold"
	}
	return "Helvetica"
}

func (l line) fontSize() float64 {
	if l.heading {
		return 13
	}
	return 10
}

func heading(text string) line { return line{text: text, heading: true} }
func body(text string) line    { return line{text: text} }

func kv(key, value string) line {
	return body(fmt.Sprintf("%s: %s", key, value))
}

// layoutLines flattens the report into ordered print lines: case info,
// technical analysis, chain of custody, verification, legal statements,
// then the appendix.
func layoutLines(b Body) []line {
	var lines []line
	add := func(l ...line) { lines = append(lines, l...) }

	add(heading("COURT EVIDENCE REPORT"))
	add(kv("Report ID", b.ReportID))
	add(body(""))

	add(heading("1. Case Information"))
	add(kv("Detection ID", strconv.FormatInt(b.CaseInfo.DetectionID, 10)))
	add(kv("Detection Type", b.CaseInfo.DetectionType))
	add(kv("Examiner ID", strconv.FormatInt(b.CaseInfo.ExaminerID, 10)))
	add(kv("Evidence File", b.CaseInfo.EvidenceFile))
	add(kv("Analysis Date", b.CaseInfo.AnalysisDate))
	add(body(""))

	add(heading("2. Technical Analysis"))
	add(kv("Prediction", b.TechnicalAnalysis.Prediction))
	add(kv("Confidence Score", fmt.Sprintf("%.4f", b.TechnicalAnalysis.ConfidenceScore)))
	add(kv("Detection Method", b.TechnicalAnalysis.DetectionMethod))
	add(kv("Model Version", b.TechnicalAnalysis.ModelVersion))
	add(body(""))

	add(heading("3. Chain of Custody"))
	for i, entry := range b.ChainOfCustody {
		add(body(fmt.Sprintf("%d. [%s] %s", i+1, entry.Timestamp, entry.Action)))
		add(body("   " + entry.Details))
	}
	add(body(""))

	add(heading("4. Verification"))
	add(kv("Original File SHA-256", b.Verification.OriginalFileSHA256))
	for _, pair := range fingerprintPairs(b.Verification.FuzzyFingerprints) {
		add(kv("Fuzzy Fingerprint ("+pair[0]+")", pair[1]))
	}
	add(kv("Verified At", b.Verification.VerifiedAt))
	add(kv("Integrity Status", b.Verification.IntegrityStatus))
	add(body(""))

	add(heading("5. Legal Statements"))
	for i, stmt := range b.LegalStatements {
		for j, wrapped := range wrap(stmt, 95) {
			prefix := "   "
			if j == 0 {
				prefix = fmt.Sprintf("%d. ", i+1)
			}
			add(body(prefix + wrapped))
		}
	}
	add(body(""))

	add(heading("Appendix A. Methodology"))
	for _, m := range b.Appendix.Methodology {
		for j, wrapped := range wrap(m, 95) {
			prefix := "   "
			if j == 0 {
				prefix = "- "
			}
			add(body(prefix + wrapped))
		}
	}
	add(body(""))

	add(heading("Appendix B. Examiner System"))
	si := b.Appendix.SystemInfo
	add(kv("Hostname", si.Hostname))
	add(kv("Platform", strings.TrimSpace(si.Platform+" "+si.PlatformVersion)))
	add(kv("Kernel", si.KernelVersion))
	add(kv("Architecture", si.OS+"/"+si.Architecture))
	add(kv("Tool Version", si.ToolVersion))
	add(kv("Collected At", si.CollectedAt))

	return lines
}

func fingerprintPairs(fingerprints map[string]string) [][2]string {
	algos := make([]string, 0, len(fingerprints))
	for algo := range fingerprints {
		algos = append(algos, algo)
	}
	sort.Strings(algos)
	pairs := make([][2]string, 0, len(algos))
	for _, algo := range algos {
		pairs = append(pairs, [2]string{algo, fingerprints[algo]})
	}
	return pairs
}

// wrap splits text into chunks of at most width characters, breaking on
// spaces.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var (
		out     []string
		current strings.Builder
	)
	for _, word := range words {
		if current.Len() > 0 && current.Len()+1+len(word) > width {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}
