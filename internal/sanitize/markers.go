package sanitize

import (
	"fmt"
	"strings"
)

// System-generated tracking markers. These are appended only after
// Sanitize has run, which strips every comment the author wrote, so a
// marker present in final text is guaranteed to be ours.
const (
	trackerMarkerFormat = "<!-- outpost-tracker: %s -->"
	runMarkerFormat     = "<!-- outpost-run: %s -->"
)

// TrackerMarker renders the tracker-id comment for an entity.
func TrackerMarker(trackerID string) string {
	return fmt.Sprintf(trackerMarkerFormat, trackerID)
}

// RunMarker renders the workflow-run comment.
func RunMarker(runID string) string {
	return fmt.Sprintf(runMarkerFormat, runID)
}

// AppendMarkers attaches the tracking markers to already-sanitized
// text. Empty ids are omitted.
func AppendMarkers(text, trackerID, runID string) string {
	parts := []string{strings.TrimRight(text, "\n")}
	if trackerID != "" {
		parts = append(parts, TrackerMarker(trackerID))
	}
	if runID != "" {
		parts = append(parts, RunMarker(runID))
	}
	return strings.Join(parts, "\n\n")
}

// Footer renders the generated-by footer. template may contain
// "{run_url}"; when template is empty a default attribution line is
// used.
func Footer(template, runURL string) string {
	if template == "" {
		if runURL == "" {
			return "> Generated by an agentic workflow"
		}
		return fmt.Sprintf("> Generated by an [agentic workflow](%s)", runURL)
	}
	return strings.ReplaceAll(template, "{run_url}", runURL)
}

// AppendFooter attaches the footer below the body text.
func AppendFooter(text, footer string) string {
	if footer == "" {
		return text
	}
	if text == "" {
		return footer
	}
	return strings.TrimRight(text, "\n") + "\n\n" + footer
}
