// Package stream publishes the miner event stream over a ZeroMQ PUB
// socket. Frames are topic-prefixed JSON, `uhash-<type>:<payload>`, so
// subscribers can filter server-side on the event type prefix.
package stream

import (
	"context"

	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"

	"github.com/cyberia-to/universal-hash/miner"
	"github.com/cyberia-to/universal-hash/utils"
)

const topicPrefix = "uhash-"

type Publisher struct {
	sock zmq4.Socket
}

// NewPublisher binds a PUB socket on listen (e.g. tcp://127.0.0.1:5561).
func NewPublisher(ctx context.Context, listen string) (*Publisher, error) {
	sock := zmq4.NewPub(ctx)
	if err := sock.Listen(listen); err != nil {
		return nil, errors.Wrapf(err, "stream: listen %s", listen)
	}
	return &Publisher{sock: sock}, nil
}

// Publish implements miner.Sink. Send failures are dropped; PUB sockets
// are fire-and-forget by design and the miner must never stall on a slow
// subscriber.
func (p *Publisher) Publish(ev miner.Event) {
	payload, err := utils.MarshalJSON(ev)
	if err != nil {
		utils.Errorf("stream", "marshal event: %s", err)
		return
	}

	frame := make([]byte, 0, len(topicPrefix)+len(ev.Type)+1+len(payload))
	frame = append(frame, topicPrefix...)
	frame = append(frame, ev.Type...)
	frame = append(frame, ':')
	frame = append(frame, payload...)

	if err = p.sock.Send(zmq4.NewMsg(frame)); err != nil {
		utils.Debugf("stream", "send: %s", err)
	}
}

func (p *Publisher) Close() error {
	return p.sock.Close()
}
