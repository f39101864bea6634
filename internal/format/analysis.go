package format

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Analysis is the data payload of an analyze_repository result.
type Analysis struct {
	AnalysisID        string `json:"analysis_id"`
	Branch            string `json:"branch"`
	AnalysisTimestamp string `json:"analysis_timestamp"`

	RepositoryInfo *struct {
		CurrentBranch  string `json:"current_branch"`
		TotalCommits   int    `json:"total_commits"`
		RepositorySize string `json:"repository_size"`
	} `json:"repository_info"`

	CodeMetrics *struct {
		TotalFiles        int     `json:"total_files"`
		TotalLinesOfCode  int     `json:"total_lines_of_code"`
		AverageComplexity float64 `json:"average_complexity"`
		LinesPerFile      float64 `json:"lines_per_file"`
	} `json:"code_metrics"`

	CodeSmells *struct {
		TotalSmells   int `json:"total_smells"`
		FilesAnalyzed int `json:"files_analyzed"`
	} `json:"code_smells"`

	Contributors *struct {
		TotalContributors int `json:"total_contributors"`
		TotalCommits      int `json:"total_commits"`
	} `json:"contributors"`

	Hotspots *struct {
		Hotspots  []any   `json:"hotspots"`
		Threshold float64 `json:"threshold"`
	} `json:"hotspots"`
}

// AnalysisSummary renders a repository analysis as a chat reply.
func AnalysisSummary(a Analysis) string {
	var b strings.Builder
	b.WriteString("Repository analysis complete\n")
	if a.AnalysisID != "" {
		fmt.Fprintf(&b, "Analysis ID: %s\n", a.AnalysisID)
	}
	if a.Branch != "" {
		fmt.Fprintf(&b, "Branch: %s\n", a.Branch)
	}
	if a.AnalysisTimestamp != "" {
		fmt.Fprintf(&b, "Analyzed: %s\n", a.AnalysisTimestamp)
	}

	if ri := a.RepositoryInfo; ri != nil {
		b.WriteString("\nRepository info:\n")
		fmt.Fprintf(&b, "  Current branch: %s\n", ri.CurrentBranch)
		fmt.Fprintf(&b, "  Total commits: %d\n", ri.TotalCommits)
		fmt.Fprintf(&b, "  Repository size: %s\n", ri.RepositorySize)
	}
	if m := a.CodeMetrics; m != nil {
		b.WriteString("\nCode metrics:\n")
		fmt.Fprintf(&b, "  Files analyzed: %d\n", m.TotalFiles)
		fmt.Fprintf(&b, "  Total lines: %d\n", m.TotalLinesOfCode)
		fmt.Fprintf(&b, "  Avg complexity: %.2f\n", m.AverageComplexity)
		fmt.Fprintf(&b, "  Lines per file: %.1f\n", m.LinesPerFile)
	}
	if s := a.CodeSmells; s != nil {
		b.WriteString("\nCode smells:\n")
		fmt.Fprintf(&b, "  Total smells: %d\n", s.TotalSmells)
		fmt.Fprintf(&b, "  Files analyzed: %d\n", s.FilesAnalyzed)
	}
	if c := a.Contributors; c != nil {
		b.WriteString("\nContributors:\n")
		fmt.Fprintf(&b, "  Total contributors: %d\n", c.TotalContributors)
		fmt.Fprintf(&b, "  Total commits: %d\n", c.TotalCommits)
	}
	if h := a.Hotspots; h != nil {
		b.WriteString("\nHotspots:\n")
		fmt.Fprintf(&b, "  Problematic files: %d\n", len(h.Hotspots))
		fmt.Fprintf(&b, "  Threshold: %.2f\n", h.Threshold)
	}

	if a.AnalysisID != "" {
		fmt.Fprintf(&b, "\nUse 'generate report' to get a detailed report.")
	}
	return strings.TrimRight(b.String(), "\n")
}

var reportMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderReportHTML converts a markdown analysis report into a
// standalone HTML document.
func RenderReportHTML(markdown string) (string, error) {
	var body bytes.Buffer
	if err := reportMarkdown.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}

	var doc bytes.Buffer
	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	doc.WriteString("<title>Repository Report</title>\n</head>\n<body>\n")
	doc.Write(body.Bytes())
	doc.WriteString("</body>\n</html>\n")
	return doc.String(), nil
}
