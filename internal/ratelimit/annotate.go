package ratelimit

import "strconv"

// Rate limit response headers, set on forwarded and rejected responses alike.
const (
	HeaderLimit     = "x-ratelimit-limit"
	HeaderRemaining = "x-ratelimit-remaining"
	HeaderReset     = "x-ratelimit-reset"
)

// HeaderSetter receives response headers. huma.Context satisfies it.
type HeaderSetter interface {
	SetHeader(name, value string)
}

// Header is a single response header.
type Header struct {
	Name  string
	Value string
}

// Headers maps a decision onto the three rate limit headers.
// Remaining is clamped to [0, limit] and reset is never negative.
func (d *Decision) Headers() [3]Header {
	limit := max(d.Limit, 0)
	remaining := min(max(d.Remaining, 0), limit)

	return [3]Header{
		{Name: HeaderLimit, Value: strconv.FormatInt(limit, 10)},
		{Name: HeaderRemaining, Value: strconv.FormatInt(remaining, 10)},
		{Name: HeaderReset, Value: strconv.FormatInt(d.ResetSeconds(), 10)},
	}
}

// Annotate writes the rate limit headers of d to dst.
func Annotate(dst HeaderSetter, d *Decision) {
	for _, h := range d.Headers() {
		dst.SetHeader(h.Name, h.Value)
	}
}
