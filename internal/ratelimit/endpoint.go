package ratelimit

import "github.com/danielgtaylor/huma/v2"

// MetadataKey is the key used to store rate limit settings in operation metadata.
const MetadataKey = "rateLimit"

// EndpointConfig is attached to Huma operations via the Metadata field.
//
// The quota itself is global; an operation can only opt out of it.
type EndpointConfig struct {
	// Exempt skips admission control for the operation, e.g. health and admin routes.
	// Exempt responses carry no rate limit headers.
	Exempt bool
}

// GetEndpointConfig extracts the EndpointConfig from operation metadata, if present.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}

// IsExempt reports whether the operation serving ctx opted out of admission control.
func IsExempt(ctx huma.Context) bool {
	cfg := GetEndpointConfig(ctx)

	return cfg != nil && cfg.Exempt
}

// ExemptMetadata returns operation metadata that opts out of admission control.
func ExemptMetadata() map[string]any {
	return map[string]any{MetadataKey: EndpointConfig{Exempt: true}}
}
