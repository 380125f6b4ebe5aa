// Package gateway wraps the asynchronous speech jobs behind plain
// call-and-return APIs. Both gateways reject invalid input locally before any
// network round trip.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"voicebridge/internal/config"
)

// ErrInvalidInput indicates a request was rejected before any network call.
var ErrInvalidInput = errors.New("invalid input")

// JobRunner is the async-job protocol consumed by both gateways.
type JobRunner interface {
	Run(ctx context.Context, endpointID, apiKey string, input any) (json.RawMessage, error)
}

// ServiceSource yields the current speech-service configuration. The registry
// satisfies it; updates through the registry are picked up on the next call.
type ServiceSource interface {
	STT() config.ServiceConfig
	TTS() config.ServiceConfig
}

// decodeStringField pulls one of the named keys out of a job output, which
// some workers return as an object and some as a bare string.
func decodeStringField(output json.RawMessage, keys ...string) (string, error) {
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(output, &asMap); err == nil {
		for _, key := range keys {
			raw, ok := asMap[key]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return "", fmt.Errorf("decode output field %q: %w", key, err)
			}
			return s, nil
		}
		return "", fmt.Errorf("job output missing fields %s", strings.Join(keys, ", "))
	}

	var s string
	if err := json.Unmarshal(output, &s); err != nil {
		return "", fmt.Errorf("decode job output: %w", err)
	}
	return s, nil
}
