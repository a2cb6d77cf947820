package relay

import (
	"context"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// TopicSource hands out Pub/Sub publishers by topic name. *pubsub.Client
// satisfies it.
type TopicSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
	Stop()
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// publisherPool keeps one publisher per topic for the life of the relay so
// batching and connections are shared across drains. Not safe for concurrent
// use; the relay drains from a single goroutine.
type publisherPool struct {
	open    func(topic string) topicPublisher
	byTopic map[string]topicPublisher
}

func newPublisherPool(open func(topic string) topicPublisher) *publisherPool {
	return &publisherPool{open: open, byTopic: map[string]topicPublisher{}}
}

func (p *publisherPool) get(topic string) topicPublisher {
	if pub, ok := p.byTopic[topic]; ok {
		return pub
	}
	pub := p.open(topic)
	if pub == nil {
		return nil
	}
	p.byTopic[topic] = pub
	return pub
}

// stopAll flushes and stops every opened publisher.
func (p *publisherPool) stopAll() {
	for topic, pub := range p.byTopic {
		pub.Stop()
		delete(p.byTopic, topic)
	}
}

func gcpOpener(source TopicSource) func(topic string) topicPublisher {
	return func(topic string) topicPublisher {
		pub := source.Publisher(topic)
		if pub == nil {
			return nil
		}
		return gcpTopic{pub: pub}
	}
}

type gcpTopic struct {
	pub *gcppubsub.Publisher
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return t.pub.Publish(ctx, msg)
}

func (t gcpTopic) Stop() {
	t.pub.Stop()
}
