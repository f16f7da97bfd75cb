package httpclient

import (
	"io"
	"sync/atomic"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// wrappedBody keeps the request span alive until the response body is
// actually consumed. It counts bytes read, records read errors on the
// span, and ends the span on EOF or Close, whichever comes first. Without
// it the span would close at header time and undercount streaming
// responses.
type wrappedBody struct {
	span   trace.Span
	body   io.ReadCloser
	read   atomic.Int64
	closed atomic.Bool

	// onClose receives the total bytes read once, when the span ends.
	// Used to feed the response body size histogram.
	onClose func(bytesRead int64)
}

// newWrappedBody wraps body so that span ends when the caller finishes
// with it. A nil body stays nil so callers can keep their existing
// resp.Body == nil checks.
func newWrappedBody(
	span trace.Span,
	body io.ReadCloser,
	onClose func(bytesRead int64),
) io.ReadCloser {
	if body == nil {
		return nil
	}

	wb := &wrappedBody{
		span:    span,
		body:    body,
		onClose: onClose,
	}

	// Protocol upgrades (101) hand back a body that is also a writer.
	// Wrapping must not hide that, or the upgraded connection breaks.
	if _, ok := body.(io.ReadWriteCloser); ok {
		return &readWriteCloserWrapper{wrappedBody: wb}
	}

	return wb
}

func (w *wrappedBody) Read(p []byte) (int, error) {
	n, err := w.body.Read(p)
	w.read.Add(int64(n))

	switch err {
	case nil:
	case io.EOF:
		// The body was fully consumed; the request is done.
		w.endSpan()
	default:
		w.span.RecordError(err)
		w.span.SetStatus(codes.Error, err.Error())
	}

	return n, err
}

// Close closes the underlying body and ends the span.
func (w *wrappedBody) Close() error {
	w.endSpan()

	if w.body != nil {
		return w.body.Close()
	}
	return nil
}

// endSpan fires the onClose callback and ends the span exactly once.
// Close after EOF is the common double-call path.
func (w *wrappedBody) endSpan() {
	if w.closed.CompareAndSwap(false, true) {
		if w.onClose != nil {
			w.onClose(w.read.Load())
		}
		w.span.End()
	}
}

// readWriteCloserWrapper preserves the io.ReadWriteCloser shape of
// upgraded response bodies while keeping the span bookkeeping.
type readWriteCloserWrapper struct {
	*wrappedBody
}

var _ io.ReadWriteCloser = (*readWriteCloserWrapper)(nil)

func (w *readWriteCloserWrapper) Write(p []byte) (int, error) {
	writer, ok := w.body.(io.Writer)
	if !ok {
		return 0, io.ErrClosedPipe
	}

	n, err := writer.Write(p)
	if err != nil {
		w.span.RecordError(err)
		w.span.SetStatus(codes.Error, err.Error())
	}
	return n, err
}
