package framework

import (
	"context"

	"github.com/convergeframework/converge/pkg/identity"
	"github.com/convergeframework/converge/pkg/message"
	"github.com/convergeframework/converge/pkg/transport"
)

// driverID is the registry slot the driver occupies on the swarm fabric.
const driverID = "swarm-driver"

// Driver is the test's own handle on a swarm's message fabric. It injects
// messages with arbitrary sender fields and can subscribe to topics to
// observe traffic the agents publish.
type Driver struct {
	transport *transport.LocalTransport
}

func newDriver(registry *transport.LocalRegistry) *Driver {
	return &Driver{
		transport: transport.NewLocalTransportWithRegistry(driverID, registry),
	}
}

// Send injects a message into the swarm exactly as provided.
func (d *Driver) Send(ctx context.Context, msg *message.Message) error {
	return d.transport.Send(ctx, msg)
}

// SendSigned signs the message with the given identity and injects it. The
// sender field becomes the identity's fingerprint.
func (d *Driver) SendSigned(ctx context.Context, from *identity.Identity, msg *message.Message) error {
	signed, err := msg.Sign(from)
	if err != nil {
		return err
	}
	return d.transport.Send(ctx, signed)
}

// Subscribe registers the driver for a topic namespace.
func (d *Driver) Subscribe(namespace string) {
	d.transport.Subscribe(namespace)
}

// Receive blocks until a message reaches the driver or ctx is done.
func (d *Driver) Receive(ctx context.Context) (*message.Message, error) {
	return d.transport.Receive(ctx)
}

func (d *Driver) start(ctx context.Context) error {
	return d.transport.Start(ctx)
}

func (d *Driver) stop(ctx context.Context) error {
	return d.transport.Stop(ctx)
}
