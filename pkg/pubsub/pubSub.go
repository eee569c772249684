package pubsub

import (
	"encoding/json"
	"net"
	"sync"
	"time"
)

type BytesChan = chan []byte

// WriteTimeout bounds a single write to a subscriber's connection.
var WriteTimeout = 10 * time.Second

type subscriber struct {
	ch   BytesChan
	done chan struct{} // closed when the writer goroutine has exited
}

type Subscriber = *subscriber

type TopicMap map[any]struct{}

// PubSub fans JSON lines out to subscribers. A subscriber that cannot keep up is dropped.
type PubSub struct {
	subscribers sync.Map
}

// NewSubscriber starts a writer goroutine that copies every published line to conn until
// closeChan is closed, a nil line is received or a write fails or times out.
func NewSubscriber(closeChan <-chan struct{}, conn net.Conn) Subscriber {
	s := &subscriber{ch: make(BytesChan, 10), done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer func() { _ = conn.Close() }()
		for {
			select {
			case <-closeChan:
				return
			case bytes := <-s.ch:
				if bytes == nil {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
					return
				}
				if _, err := conn.Write(bytes); err != nil {
					return
				}
			}
		}
	}()
	return s
}

// Done is closed once the subscriber no longer writes.
func (s *subscriber) Done() <-chan struct{} { return s.done }

func NewPubSub() *PubSub {
	return new(PubSub)
}

// SubscribeTopic adds or replaces a subscriber. nil topics means every topic.
func (p *PubSub) SubscribeTopic(subscriber Subscriber, topics TopicMap) {
	p.subscribers.Store(subscriber, topics)
}

// Evict delete the subscriber
func (p *PubSub) Evict(subscriber Subscriber) {
	p.subscribers.Delete(subscriber)
}

// EvictAndClose delete the subscriber and close the subscriber
func (p *PubSub) EvictAndClose(subscriber Subscriber) {
	if _, loaded := p.subscribers.LoadAndDelete(subscriber); loaded {
		select {
		case subscriber.ch <- nil: // make the subscriber exit the loop
		default:
			go func() {
				select {
				case subscriber.ch <- nil:
				case <-subscriber.done:
				}
			}()
		}
	}
}

// Len reports the number of live subscribers.
func (p *PubSub) Len() int {
	var n int
	p.subscribers.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Line encodes data the way Publish writes it.
func Line(data any) ([]byte, error) {
	mb, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(mb, '\n'), nil
}

// Publish data to the subscribers that subscribed to the topic. If topic is nil, it will be sent to all subscribers.
func (p *PubSub) Publish(data any, topic any) (err error) {
	var mb []byte
	p.subscribers.Range(func(key, value any) bool {
		if topic != nil {
			if topics, _ := value.(TopicMap); topics != nil {
				if _, ok := topics[topic]; !ok {
					return true
				}
			}
		}
		if mb == nil {
			if mb, err = Line(data); err != nil {
				return false
			}
		}
		subscriber := key.(Subscriber)
		select {
		case subscriber.ch <- mb:
		default:
			p.EvictAndClose(subscriber)
		}
		return true
	})
	return err
}
