package watch

import (
	"fmt"
	"net/url"
	"strings"
)

// Panel is the terminal error surface shown when playback cannot be
// recovered automatically. Retry is always manual: the page re-triggers the
// player load without re-resolving.
type Panel struct {
	Message     string   `json:"message"`
	Diagnostics []string `json:"diagnostics"`
	Retry       string   `json:"retry"`
}

// BuildPanel converts a fault and the last-known playback context into the
// error panel payload. Diagnostics stay non-sensitive: URL length and host,
// session title, fault code; never the signed URL itself.
func BuildPanel(fault PlaybackFault, sessionTitle string, locator *MediaLocator) Panel {
	return Panel{
		Message:     panelMessage(fault.Code),
		Diagnostics: diagnosticLines(fault, sessionTitle, locator),
		Retry:       "manual",
	}
}

func panelMessage(code FaultCode) string {
	switch code {
	case FaultAborted:
		return "Playback was interrupted. Press retry to resume."
	case FaultNetworkError:
		return "A network problem interrupted playback. Check your connection and retry."
	case FaultDecodeUnsupported:
		return "This video cannot be played on this device."
	case FaultSourceUnsupportedOrExpired:
		return "The video link could not be refreshed. Press retry to request a new one."
	default:
		return "Something went wrong during playback. Press retry to try again."
	}
}

// diagnosticLines builds the bulleted summary for the panel. Order is stable
// so the page can render it directly.
func diagnosticLines(fault PlaybackFault, sessionTitle string, locator *MediaLocator) []string {
	lines := make([]string, 0, 4)
	lines = append(lines, "fault: "+string(fault.Code))
	if sessionTitle != "" {
		lines = append(lines, "session: "+sessionTitle)
	}
	if locator != nil && locator.URL != "" {
		lines = append(lines, fmt.Sprintf("url_length: %d", len(locator.URL)))
		if host := hostOf(locator.URL); host != "" {
			lines = append(lines, "host: "+host)
		}
	}
	return lines
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Hostname()
}
