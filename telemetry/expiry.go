package telemetry

import "time"

var defaultTTLs = map[string]time.Duration{
	TypeSensorSamples:  2 * time.Minute,
	TypeProcessSignals: 2 * time.Minute,

	TypeHealthUpdate:   15 * time.Minute,
	TypeScheduleUpdate: 15 * time.Minute,

	// Anomalies are delivered at-least-once and must survive broker backlogs.
	TypeAnomalyReport: 24 * time.Hour,

	TypeWorkOrderCreated:     24 * time.Hour,
	TypePurchaseOrderCreated: 24 * time.Hour,
	TypeNotification:         24 * time.Hour,
}

// FallbackTTL is used when no specific TTL is configured.
const FallbackTTL = 10 * time.Minute

// DefaultTTLFor returns the default TTL for a message type.
func DefaultTTLFor(msgType string) time.Duration {
	if ttl, ok := defaultTTLs[msgType]; ok {
		return ttl
	}
	return FallbackTTL
}

// IsExpiredHeader checks expiry using only the raw header.
func IsExpiredHeader(hdr *RawHeader) bool {
	if hdr.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(hdr.ExpiresAt)
}
