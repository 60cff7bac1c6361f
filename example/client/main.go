// Command client connects to an rtl_tcp server, tunes it and reports the
// sample throughput once a second until interrupted.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/niclashoyer/rtltcp/rtltcp/client"
	"github.com/niclashoyer/rtltcp/xsdr"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		addr    = pflag.StringP("addr", "a", "127.0.0.1:1234", "server address")
		network = pflag.StringP("network", "n", string(xsdr.NetKindTCP), "transport: tcp, ws or kcp")
		freq    = pflag.Uint32P("freq", "f", 100_000_000, "center frequency in Hz")
		rate    = pflag.Uint32P("sample-rate", "s", 2_048_000, "sample rate in Hz")
		gain    = pflag.Int32P("gain", "g", 0, "manual gain in tenths of a dB, 0 keeps AGC")
	)

	pflag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cli := client.New(*addr, client.Network(xsdr.NetKind(*network)))
	if err := cli.Start(ctx); err != nil {
		log.Errorf("connect failed. %+v", err)
		os.Exit(1)
	}

	defer func() {
		if err := cli.Stop(context.Background()); err != nil {
			log.Errorf("stop client failed. %+v", err)
		}
	}()

	log.Infof("connected: %s", cli.Info())

	if err := tune(cli, *freq, *rate, *gain); err != nil {
		log.Errorf("tune failed. %+v", err)
		return
	}

	eg, ctx := errgroup.WithContext(ctx)
	counter := make(chan int, 64)

	eg.Go(func() error {
		defer close(counter)

		buf := make([]byte, 64*1024)

		for {
			n, err := cli.Read(buf)
			if n > 0 {
				counter <- n
			}

			if err != nil {
				if errors.Is(err, io.EOF) || ctx.Err() != nil {
					return nil
				}

				return err
			}
		}
	})

	eg.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		var total, window int

		for {
			select {
			case n, ok := <-counter:
				if !ok {
					log.Infof("stream closed after %d bytes", total)
					return nil
				}

				total += n
				window += n
			case <-ticker.C:
				log.Infof("%d bytes/s, %d I/Q pairs/s", window, window/2)
				window = 0
			}
		}
	})

	if err := eg.Wait(); err != nil {
		log.Errorf("read failed. %+v", err)
	}
}

func tune(cli *client.Client, freq, rate uint32, gain int32) error {
	if err := cli.SetSampleRate(rate); err != nil {
		return err
	}

	if err := cli.SetCenterFreq(freq); err != nil {
		return err
	}

	if gain == 0 {
		return cli.SetAGCMode(true)
	}

	if err := cli.SetAGCMode(false); err != nil {
		return err
	}

	return cli.SetTunerGain(gain)
}
