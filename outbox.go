package ticketrelay

import (
	"sync"

	"go.uber.org/zap"
)

// Sink writes outbound events to one transport connection.
type Sink interface {
	Send(ev Outbound) error
	Close()
}

// outbox queues events for one connection and drains them on its own
// goroutine, so a slow or broken transport only ever stalls itself.
type outbox struct {
	sink  Sink
	queue chan Outbound
	done  chan struct{}
	once  sync.Once

	// inline delivers on the caller's goroutine. Tests only.
	inline bool

	logger *zap.SugaredLogger
}

func newOutbox(sink Sink, size int, inline bool, logger *zap.SugaredLogger) *outbox {
	o := &outbox{
		sink:   sink,
		queue:  make(chan Outbound, size),
		done:   make(chan struct{}),
		inline: inline,
		logger: logger,
	}
	if !inline {
		go o.run()
	}
	return o
}

// push never blocks. It reports false when the event was dropped because
// the outbox is full or already stopped.
func (o *outbox) push(ev Outbound) bool {
	select {
	case <-o.done:
		return false
	default:
	}

	if o.inline {
		if err := o.sink.Send(ev); err != nil {
			o.logger.Warnf("Send %s: %v", ev.EventName(), err)
		}
		return true
	}

	select {
	case o.queue <- ev:
		return true
	default:
		o.logger.Warnf("Outbox full, dropping %s", ev.EventName())
		return false
	}
}

func (o *outbox) run() {
	for {
		select {
		case <-o.done:
			return
		case ev := <-o.queue:
			if err := o.sink.Send(ev); err != nil {
				o.logger.Warnf("Send %s: %v", ev.EventName(), err)
			}
		}
	}
}

func (o *outbox) stop() {
	o.once.Do(func() {
		close(o.done)
	})
}
