package util

import (
	"context"
	"io"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

type Deadline interface {
	SetDeadline(t time.Time) error
}

// SetDeadlineWithContext expires d's deadline once ctx is done, which fails
// every pending and future read and write on it.
func SetDeadlineWithContext(ctx context.Context, d Deadline, tag string) {
	go func() {
		<-ctx.Done()

		log.Debugf("[util.SetDeadlineWithContext] %s deadline expired", tag)

		if err := d.SetDeadline(time.Now()); err != nil {
			log.Errorf("[util.SetDeadlineWithContext] %s set deadline failed. %+v", tag, err)
		}
	}()
}

// CloseOnCancel closes closer once ctx is done.
func CloseOnCancel(ctx context.Context, closer io.Closer, tag string) {
	go func() {
		<-ctx.Done()

		log.Debugf("[util.CloseOnCancel] %s closing", tag)

		if err := closer.Close(); err != nil {
			log.Debugf("[util.CloseOnCancel] %s close failed. %+v", tag, err)
		}
	}()
}
