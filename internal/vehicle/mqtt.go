package vehicle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/mqtt"
)

// Subscriber is the part of the MQTT client the source needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTSource feeds a Latest cache from the vehicle's MQTT topics.
type MQTTSource struct {
	*Latest
	client Subscriber
	topics []string
}

// NewMQTTSource subscribes to deviceState and carParams.
//
// Parameters:
//   - client: Connected MQTT client
//   - qos: Subscription QoS
//
// Returns:
//   - *MQTTSource: Source ready to Poll
//   - error: If either subscription fails
func NewMQTTSource(client Subscriber, qos byte) (*MQTTSource, error) {
	s := &MQTTSource{Latest: NewLatest(), client: client}

	topics := mqtt.Topics{}
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{topics.CarParams(), s.HandleCarParams},
		{topics.DeviceState(), s.HandleDeviceState},
	}
	for _, sub := range subs {
		if err := client.Subscribe(sub.topic, qos, sub.handler); err != nil {
			s.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, fmt.Errorf("subscribing %s: %w", sub.topic, err)
		}
		s.topics = append(s.topics, sub.topic)
	}
	return s, nil
}

// Poll implements Source.
func (s *MQTTSource) Poll(ctx context.Context, timeout time.Duration) (Snapshot, error) {
	return s.Latest.Poll(ctx, timeout)
}

// Close removes the subscriptions.
func (s *MQTTSource) Close() error {
	var errs []error
	for _, topic := range s.topics {
		if err := s.client.Unsubscribe(topic); err != nil {
			errs = append(errs, err)
		}
	}
	s.topics = nil
	return errors.Join(errs...)
}
