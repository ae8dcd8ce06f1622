// Package stderr segments an unbounded stderr byte stream into error records.
//
// A Classifier is a two-state machine. While IDLE every complete line is offered to the
// detectors' start predicates in priority order; the first match opens a segment owned by
// that detector. While ACCUMULATING lines are appended until the owning detector has
// rejected IdleThreshold consecutive lines, or the segment reaches MaxTraceLines. A closed
// segment is parsed and handed to the Sink as a contracts.ErrorReport.
package stderr

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"devsonar/src/contracts"
	"devsonar/src/detect"
	"devsonar/src/logger"
	"devsonar/src/metrics"
)

const (
	// DefaultIdleThreshold is the number of consecutive non-continuation lines that close a segment.
	DefaultIdleThreshold = 2
	// DefaultMaxTraceLines caps the number of lines one segment may hold.
	DefaultMaxTraceLines = 200
	// DefaultSource is the origin tag used when Options.Source is empty.
	DefaultSource = "stderr"

	// maxReplacementRatio is the share of U+FFFD characters above which a chunk is treated as binary.
	maxReplacementRatio = 0.1
)

// Sink receives one report per closed segment. It is called synchronously from Feed or Flush.
type Sink func(report contracts.ErrorReport)

// Options tune a Classifier. Zero values select the defaults.
type Options struct {
	Source        string
	IdleThreshold int
	MaxTraceLines int
	Detectors     []detect.Detector
	Metrics       *metrics.Metrics
	Logger        logger.Logger
	Now           func() time.Time
}

type state int

const (
	idle state = iota
	accumulating
)

// Classifier holds the segmentation state of one stream. It is not safe for concurrent use;
// each stream gets its own Classifier driven by a single goroutine.
type Classifier struct {
	sink Sink
	opts Options

	state  state
	active detect.Detector
	lines  []string
	misses int

	partial string
	// carry holds an incomplete trailing UTF-8 sequence from the previous chunk.
	carry []byte
}

// New creates a Classifier that delivers records to sink.
func New(sink Sink, opts Options) *Classifier {
	if opts.Source == "" {
		opts.Source = DefaultSource
	}
	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = DefaultIdleThreshold
	}
	if opts.MaxTraceLines <= 0 {
		opts.MaxTraceLines = DefaultMaxTraceLines
	}
	if len(opts.Detectors) == 0 {
		opts.Detectors = detect.All()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewSilentLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Classifier{sink: sink, opts: opts}
}

// Feed consumes the next chunk of the stream. Chunks that look like binary data are
// discarded whole and leave the classifier untouched.
func (c *Classifier) Feed(chunk []byte) {
	if bytes.IndexByte(chunk, 0) != -1 {
		c.opts.Metrics.ChunkDiscarded(metrics.ReasonNulByte)
		c.opts.Logger.Debug("[Classifier] Discarded %d-byte chunk containing NUL", len(chunk))
		return
	}

	data := chunk
	if len(c.carry) > 0 {
		data = make([]byte, 0, len(c.carry)+len(chunk))
		data = append(data, c.carry...)
		data = append(data, chunk...)
	}
	complete, rest := splitIncomplete(data)

	text, total, replaced := decode(complete)
	if float64(replaced) > float64(total)*maxReplacementRatio {
		c.opts.Metrics.ChunkDiscarded(metrics.ReasonReplacement)
		c.opts.Logger.Debug("[Classifier] Discarded chunk with %d/%d replacement characters", replaced, total)
		return
	}
	c.carry = append(c.carry[:0], rest...)

	parts := strings.Split(c.partial+text, "\n")
	c.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		c.processLine(strings.TrimSuffix(line, "\r"))
	}
}

// Write implements io.Writer. It never fails.
func (c *Classifier) Write(p []byte) (int, error) {
	c.Feed(p)
	return len(p), nil
}

// Flush ends the stream: the outstanding partial line is processed as a complete line and
// any open segment is closed.
func (c *Classifier) Flush() {
	if len(c.carry) > 0 {
		text, _, _ := decode(c.carry)
		c.partial += text
		c.carry = c.carry[:0]
	}
	if c.partial != "" {
		line := strings.TrimSuffix(c.partial, "\r")
		c.partial = ""
		c.processLine(line)
	}
	if c.state == accumulating && len(c.lines) > 0 {
		c.emit()
	}
}

// Accumulating reports whether a segment is currently open.
func (c *Classifier) Accumulating() bool {
	return c.state == accumulating
}

func (c *Classifier) processLine(line string) {
	if c.state == idle {
		for _, d := range c.opts.Detectors {
			if d.IsErrorStart(line) {
				c.state = accumulating
				c.active = d
				c.lines = []string{line}
				c.misses = 0
				return
			}
		}
		return
	}

	// The line that hits the cap is not consumed.
	if len(c.lines) >= c.opts.MaxTraceLines {
		c.emit()
		return
	}

	continues := c.active.IsContinuation(line, c.lines)
	c.lines = append(c.lines, line)
	if continues {
		c.misses = 0
		return
	}
	c.misses++
	if c.misses >= c.opts.IdleThreshold {
		c.emit()
	}
}

func (c *Classifier) emit() {
	if c.active == nil || len(c.lines) == 0 {
		c.reset()
		return
	}

	parsed := c.active.Parse(c.lines)
	c.reset()

	c.opts.Metrics.SegmentEmitted(parsed.Language)
	c.opts.Logger.Debug("[Classifier] Closed %s segment (%d lines): %s", parsed.Language, len(parsed.RawLines), parsed.ErrorType)

	if c.sink != nil {
		c.sink(c.report(parsed))
	}
}

func (c *Classifier) report(parsed detect.NormalizedError) contracts.ErrorReport {
	return contracts.ErrorReport{
		Message:   fmt.Sprintf("%s: %s", parsed.ErrorType, parsed.Message),
		Stack:     parsed.Stack,
		Source:    fmt.Sprintf("%s-%s", c.opts.Source, parsed.Language),
		Timestamp: contracts.NowTimestamp(c.opts.Now()),
		Context: map[string]any{
			"language":    parsed.Language,
			"detectedVia": "stderr",
		},
	}
}

func (c *Classifier) reset() {
	c.state = idle
	c.active = nil
	c.lines = nil
	c.misses = 0
}

// splitIncomplete separates a trailing, not yet complete UTF-8 sequence from b.
func splitIncomplete(b []byte) (complete, rest []byte) {
	for i := len(b) - 1; i >= 0 && i > len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return b[:i], b[i:]
		}
		break
	}
	return b, nil
}

// decode converts b to a string, replacing every invalid byte with U+FFFD. It returns the
// number of characters and how many of them are U+FFFD.
func decode(b []byte) (text string, total, replaced int) {
	if utf8.Valid(b) {
		s := string(b)
		return s, utf8.RuneCountInString(s), strings.Count(s, string(utf8.RuneError))
	}

	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError {
			replaced++
		}
		sb.WriteRune(r)
		total++
		b = b[size:]
	}
	return sb.String(), total, replaced
}
