package aibackend

// Sink receives incremental text fragments ("deltas") as a stream is parsed.
// It is invoked zero or more times per request, always from the goroutine
// that reads the network stream and always in arrival order, so it directly
// gates how quickly subsequent bytes are read: implementations must not
// perform blocking I/O. Hand the delta off (channel send with a buffer,
// append under a short lock) and return.
type Sink func(delta string)

// PlaceholderResponse is the degraded-success outcome: the connection
// completed and bytes arrived, but no text could be extracted from them.
// It is returned as the full response text, with a nil error, to keep
// "provider sent an unparseable format" distinguishable from both real
// content and the hard ErrEmptyResult failure (zero bytes received).
//
// The literal is part of the persisted-transcript surface; do not change it.
const PlaceholderResponse = "(Response received but requires different format parsing)"

// IsPlaceholder reports whether a response text is the degraded-success
// placeholder rather than model output.
func IsPlaceholder(text string) bool {
	return text == PlaceholderResponse
}
