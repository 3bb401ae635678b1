package handlers

import "finitefield.org/manga-web/internal/config"

// Analytics holds client instrumentation IDs surfaced to templates. Empty IDs
// disable the corresponding snippet.
type Analytics struct {
	GA4MeasurementID string // e.g. G-XXXXXXXXXX
	GTMContainerID   string // e.g. GTM-XXXXXXX
}

// AnalyticsFromConfig copies the analytics section of the config.
func AnalyticsFromConfig(cfg config.Config) Analytics {
	return Analytics{
		GA4MeasurementID: cfg.Analytics.GA4,
		GTMContainerID:   cfg.Analytics.GTM,
	}
}

// Enabled reports whether any snippet should be emitted.
func (a Analytics) Enabled() bool { return a.GA4MeasurementID != "" || a.GTMContainerID != "" }
