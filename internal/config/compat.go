package config

import (
	"log/slog"
	"strings"
)

// normalizeDBURL rewrites SQLAlchemy-style URLs into ones the Go drivers accept.
// postgresql+psycopg2://... becomes postgres://...
func normalizeDBURL(raw string) string {
	out := raw
	if plus := strings.Index(out, "+"); plus >= 0 {
		if colon := strings.Index(out, "://"); colon > plus {
			out = out[:plus] + out[colon:]
		}
	}
	if strings.HasPrefix(out, "postgresql://") {
		out = "postgres://" + strings.TrimPrefix(out, "postgresql://")
	}
	if out != raw {
		slog.Warn("normalized legacy database URL",
			"original_scheme", scheme(raw),
			"normalized_scheme", scheme(out),
		)
	}
	return out
}

func scheme(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[:i]
	}
	return ""
}

// Normalize returns a copy of the EnvConfig with the legacy variable names
// folded into their canonical fields. Canonical variables win when both are set.
func (e EnvConfig) Normalize() EnvConfig {
	if e.DBURL == "" && e.PGVectorURL != "" {
		e.DBURL = e.PGVectorURL
	}
	if e.DBURL != "" {
		e.DBURL = normalizeDBURL(e.DBURL)
	}

	gen := &e.GenerationEndpoint
	if gen.Model == "" && e.ClaudeModel != "" {
		gen.Model = e.ClaudeModel
	}
	if gen.VertexProjectID == "" && e.VertexProjectID != "" {
		gen.VertexProjectID = e.VertexProjectID
	}
	if e.VertexRegion != "" && (gen.VertexRegion == "" || gen.VertexRegion == DefaultVertexRegion) {
		gen.VertexRegion = e.VertexRegion
	}
	return e
}
