package watch

import "time"

// ContentID uniquely identifies a piece of media being viewed.
type ContentID string

// FaultCode classifies a player-reported playback error.
type FaultCode string

const (
	FaultAborted                    FaultCode = "aborted"
	FaultNetworkError               FaultCode = "network_error"
	FaultDecodeUnsupported          FaultCode = "decode_unsupported"
	FaultSourceUnsupportedOrExpired FaultCode = "source_unsupported_or_expired"
	FaultUnknown                    FaultCode = "unknown"
)

// Native error codes reported by the player surface (HTML media element codes).
const (
	NativeErrAborted         = 1
	NativeErrNetwork         = 2
	NativeErrDecode          = 3
	NativeErrSrcNotSupported = 4
)

// PlaybackFault is the classified form of a single player error event.
// It is constructed fresh per event and never retained past its handling.
type PlaybackFault struct {
	Code        FaultCode `json:"code"`
	Recoverable bool      `json:"recoverable"`
}

// MediaLocator is a time-limited playable locator for a piece of media.
// A refresh supersedes the whole value; locators are never mutated in place.
// Expiry is detected reactively through playback faults, so no expiry
// timestamp is tracked beyond FetchedAt.
type MediaLocator struct {
	URL       string            `json:"url"`
	BackupURL string            `json:"backupUrl,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	FetchedAt time.Time         `json:"fetchedAt"`
}

// ContentSession records one viewing attempt for a content id.
type ContentSession struct {
	ContentID ContentID `json:"contentId"`
	TabToken  string    `json:"tabToken"`
	StartedAt time.Time `json:"startedAt"`
}

// Coordinates identify a recording at the locate service: which batch, which
// participant, and which session in the sequence.
type Coordinates struct {
	BatchID        string `json:"batchId"`
	ParticipantID  string `json:"participantId"`
	SequenceNumber string `json:"sequenceNumber"`
}

// Complete reports whether all three coordinates are present.
func (c Coordinates) Complete() bool {
	return c.BatchID != "" && c.ParticipantID != "" && c.SequenceNumber != ""
}

// ResolveParams carry the identifying input for a locator resolution: either a
// session id (resolved to Coordinates via the session lookup service) or the
// Coordinates themselves.
type ResolveParams struct {
	SessionID string `json:"sessionId,omitempty"`
	Coordinates
}
