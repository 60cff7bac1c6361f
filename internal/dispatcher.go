package internal

import (
	"context"
	"io"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/niclashoyer/rtltcp/rtltcp/frame"
	"github.com/niclashoyer/rtltcp/xsdr"
)

// dispatcher reads command frames from the client and applies them to the
// device in arrival order.
type dispatcher struct {
	codec    *frame.Codec
	dev      *guardedDevice
	shutdown *Shutdown
	filter   middleware.Middleware

	endpoint     string
	header       xsdr.HeaderCarrier
	ignoreErrors bool

	log *log.Helper
}

// run returns nil when the client stops sending, which is an ordinary end
// of a session. Only a rejected command under the fatal policy is an error.
func (d *dispatcher) run(ctx context.Context) error {
	for {
		cmd, err := d.codec.DecodeCommand()
		if err != nil {
			d.readStopped(err)
			return nil
		}

		if err = d.dispatch(ctx, cmd); err != nil {
			d.shutdown.Trigger(ReasonDevice)
			return err
		}
	}
}

func (d *dispatcher) readStopped(err error) {
	if !d.shutdown.Trigger(ReasonPeer) {
		return
	}

	if errors.Is(err, io.EOF) {
		d.log.Debugw("msg", "client closed the command stream")
		return
	}

	d.log.Debugw("msg", "command read stopped", "error", err)
}

func (d *dispatcher) dispatch(ctx context.Context, cmd frame.Command) error {
	ctx = transport.NewServerContext(ctx, xsdr.NewTransport(d.endpoint, cmd.Tag.Operation(), d.header))

	next := func(ctx context.Context, req any) (any, error) {
		return nil, d.handle(req.(frame.Command))
	}

	if d.filter != nil {
		next = d.filter(next)
	}

	_, err := next(ctx, cmd)

	return err
}

func (d *dispatcher) handle(cmd frame.Command) error {
	op := cmd.Tag.Operation()

	err := d.dev.apply(cmd)
	switch err {
	case nil:
		commandsTotal.WithLabelValues(op, "applied").Inc()
		d.log.Infow("msg", "command applied", "command", cmd.Tag.String(), "value", cmd.Value())

		return nil
	case ErrUnsupported:
		commandsTotal.WithLabelValues(op, "ignored").Inc()
		d.log.Debugw("msg", "ignoring unsupported command", "tag", cmd.Tag.String(), "param", cmd.Uint32())

		return nil
	case ErrSessionStopping:
		commandsTotal.WithLabelValues(op, "dropped").Inc()
		d.log.Debugw("msg", "dropping command, session is stopping", "command", cmd.Tag.String())

		return nil
	}

	commandsTotal.WithLabelValues(op, "rejected").Inc()

	if d.ignoreErrors {
		d.log.Errorw("msg", "device rejected command", "command", cmd.Tag.String(), "value", cmd.Value(), "error", err)
		return nil
	}

	return err
}
