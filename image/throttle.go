package image

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// throttle paces byte transfers. A nil throttle does not wait.
type throttle struct {
	limiter *rate.Limiter
}

func newThrottle(bytesPerSec, chunk int) *throttle {
	if bytesPerSec <= 0 {
		return nil
	}
	return &throttle{limiter: rate.NewLimiter(rate.Limit(bytesPerSec), max(1, min(bytesPerSec, chunk)))}
}

// wait blocks until n bytes may pass.
func (t *throttle) wait(ctx context.Context, n int) error {
	if t == nil {
		return ctx.Err()
	}
	burst := t.limiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := t.limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// writer returns w paced by t.
func (t *throttle) writer(ctx context.Context, w io.Writer) io.Writer {
	return &throttledWriter{ctx: ctx, t: t, w: w}
}

type throttledWriter struct {
	ctx context.Context
	t   *throttle
	w   io.Writer
}

func (tw *throttledWriter) Write(p []byte) (int, error) {
	if err := tw.t.wait(tw.ctx, len(p)); err != nil {
		return 0, err
	}
	return tw.w.Write(p)
}

// reader returns r paced by t.
func (t *throttle) reader(ctx context.Context, r io.Reader) io.Reader {
	return &throttledReader{ctx: ctx, t: t, r: r}
}

type throttledReader struct {
	ctx context.Context
	t   *throttle
	r   io.Reader
}

func (tr *throttledReader) Read(p []byte) (int, error) {
	n, err := tr.r.Read(p)
	if n > 0 {
		if werr := tr.t.wait(tr.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
