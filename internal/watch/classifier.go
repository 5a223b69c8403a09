package watch

import "net/url"

// Classifier maps native player error codes to the playback fault taxonomy.
// The CDN host allowlist biases interpretation: a "source not supported"
// error against a known CDN host is far more likely an expired signed URL
// than a genuine format problem, so it is classified as recoverable.
type Classifier struct {
	cdnHosts map[string]struct{}
}

// NewClassifier constructs a Classifier trusting the given CDN hosts.
func NewClassifier(cdnHosts []string) *Classifier {
	hosts := make(map[string]struct{}, len(cdnHosts))
	for _, h := range cdnHosts {
		hosts[h] = struct{}{}
	}
	return &Classifier{cdnHosts: hosts}
}

// Classify converts a native player error code plus the failing source URL
// into a PlaybackFault. Only network errors and suspected-expiry source
// errors are recoverable; everything else requires a manual retry.
func (c *Classifier) Classify(nativeCode int, sourceURL string) PlaybackFault {
	switch nativeCode {
	case NativeErrAborted:
		return PlaybackFault{Code: FaultAborted}
	case NativeErrNetwork:
		return PlaybackFault{Code: FaultNetworkError, Recoverable: true}
	case NativeErrDecode:
		return PlaybackFault{Code: FaultDecodeUnsupported}
	case NativeErrSrcNotSupported:
		if c.isTrustedHost(sourceURL) {
			return PlaybackFault{Code: FaultSourceUnsupportedOrExpired, Recoverable: true}
		}
		return PlaybackFault{Code: FaultDecodeUnsupported}
	default:
		return PlaybackFault{Code: FaultUnknown}
	}
}

func (c *Classifier) isTrustedHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	_, ok := c.cdnHosts[u.Hostname()]
	return ok
}
