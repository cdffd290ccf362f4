package mqtt

import "fmt"

// checkTarget validates the arguments shared by Publish and Subscribe.
func checkTarget(topic string, qos byte) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	}
	return nil
}

// Subscribe registers handler for topic. The subscription is restored
// automatically after a reconnect.
//
// Parameters:
//   - topic: Topic or wildcard pattern
//   - qos: Maximum QoS for received messages
//   - handler: Invoked for each message
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected or ErrSubscribeFailed
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTarget(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.track(topic, &subscription{topic: topic, qos: qos, handler: handler})
	err := await(c.client.Subscribe(topic, qos, c.deliver(handler)), ErrSubscribeFailed, defaultPublishTimeout)
	if err != nil {
		c.track(topic, nil)
	}
	return err
}

// Unsubscribe removes the subscription for topic. It is forgotten locally
// even when the broker cannot be told.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	c.track(topic, nil)
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.client.Unsubscribe(topic), ErrUnsubscribeFailed, defaultPublishTimeout)
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions)
}

// track records sub for replay on reconnect; nil forgets the topic.
func (c *Client) track(topic string, sub *subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub == nil {
		delete(c.subscriptions, topic)
		return
	}
	c.subscriptions[topic] = *sub
}
