package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/tableorders-backend/pkg/enums"
)

type decoderFunc func(payload json.RawMessage) (interface{}, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry is the consumer side of the catalog: it maps (event type, envelope
// version) to a payload decoder.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[decoderKey]decoderFunc{}}
}

// ForEvents returns a registry that decodes the current version of each listed event
// into its catalog type.
func ForEvents(eventTypes ...enums.OutboxEventType) (*DecoderRegistry, error) {
	reg := NewDecoderRegistry()
	for _, eventType := range eventTypes {
		factory, ok := catalog[eventType]
		if !ok {
			return nil, fmt.Errorf("no payload type for %s", eventType)
		}
		reg.Register(eventType, PayloadVersion, jsonDecoder(eventType, PayloadVersion, factory))
	}
	return reg, nil
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[decoderKey{eventType, version}] = decoder
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error) {
	r.mu.RLock()
	decoder, ok := r.decoders[decoderKey{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no decoder for %s@v%d", eventType, version)
	}
	return decoder(payload)
}

// RegisterJSON decodes eventType@version into a fresh *T.
func RegisterJSON[T any](r *DecoderRegistry, eventType enums.OutboxEventType, version int) {
	r.Register(eventType, version, jsonDecoder(eventType, version, func() interface{} { return new(T) }))
}

func jsonDecoder(eventType enums.OutboxEventType, version int, factory func() interface{}) decoderFunc {
	return func(payload json.RawMessage) (interface{}, error) {
		out := factory()
		if err := json.Unmarshal(payload, out); err != nil {
			return nil, fmt.Errorf("decode %s@v%d: %w", eventType, version, err)
		}
		return out, nil
	}
}
