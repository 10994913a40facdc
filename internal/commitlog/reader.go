package commitlog

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/event"
	"github.com/NhaLeTruc/hybrid-cdc-demo/internal/util/cltoken"
)

// ParseSkip marks a malformed frame that the reader advanced past rather
// than treating as fatal, per spec.md §4.1.
type ParseSkip struct {
	File     string
	Position int64
	Reason   string
}

// Result is one item in the stream produced by Reader.Open: either an
// Event paired with the Token immediately after it, or a ParseSkip
// marker. Exactly one of Event or Skip is set.
type Result struct {
	Event *event.Event
	Token cltoken.Token
	Skip  *ParseSkip
}

// Option configures a Reader.
type Option func(*Reader)

// WithPollInterval overrides the fallback poll cadence used when no
// filesystem-notification event arrives (default 500ms).
func WithPollInterval(d time.Duration) Option {
	return func(r *Reader) { r.pollInterval = d }
}

// WithLogger overrides the logger used for parse-skip and lifecycle
// messages.
func WithLogger(l *log.Entry) Option {
	return func(r *Reader) { r.log = l }
}

// Reader tails a commit-log directory and produces a restartable stream
// of (Event, Token) pairs, per spec.md §4.1.
type Reader struct {
	dir          string
	pollInterval time.Duration
	log          *log.Entry
}

// New constructs a Reader over the given commit-log directory.
func New(dir string, opts ...Option) *Reader {
	r := &Reader{
		dir:          dir,
		pollInterval: 500 * time.Millisecond,
		log:          log.WithField("component", "commitlog.Reader"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// listSegments returns commit-log segment file names in the directory,
// sorted so that lexicographic order matches creation order (the source
// database is assumed to name segments so that this holds, e.g. a
// zero-padded monotonically increasing sequence number).
func (r *Reader) listSegments() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, errors.Wrap(err, "commitlog: list segments")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Open returns a channel that produces the restartable event stream
// described in spec.md §4.1. With start == nil, the stream resumes from
// the oldest segment still present, position 0. With a non-nil start, it
// skips forward to (at least) that token before emitting anything new.
//
// The returned channel is closed when ctx is canceled. Open never blocks;
// all tailing happens in a background goroutine.
func (r *Reader) Open(ctx context.Context, start *cltoken.Token) (<-chan Result, error) {
	out := make(chan Result, 256)

	var resumeFrom cltoken.Token
	if start != nil {
		resumeFrom = *start
	}

	go r.run(ctx, resumeFrom, out)

	return out, nil
}

func (r *Reader) run(ctx context.Context, resumeFrom cltoken.Token, out chan<- Result) {
	defer close(out)

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(r.dir); err != nil {
			r.log.WithError(err).Warn("could not watch commit-log directory; falling back to polling only")
		}
	} else {
		r.log.WithError(err).Warn("fsnotify unavailable; falling back to polling only")
		watcher = nil
	}

	segments, err := r.listSegments()
	if err != nil {
		r.log.WithError(err).Error("could not list commit-log segments")
		return
	}

	curIdx := 0
	curPos := int64(0)
	if !resumeFrom.IsZero() {
		for i, name := range segments {
			if name == resumeFrom.File {
				curIdx = i
				curPos = resumeFrom.Position
				break
			}
		}
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		if curIdx >= len(segments) {
			segments, err = r.listSegments()
			if err != nil {
				r.log.WithError(err).Error("could not refresh commit-log segments")
				return
			}
		}
		if curIdx >= len(segments) {
			// Nothing to read yet; wait for a new segment or the poll tick.
			if !r.wait(ctx, watcher, ticker) {
				return
			}
			continue
		}

		name := segments[curIdx]
		advancedFile, err := r.drainSegment(ctx, name, &curPos, out)
		if err != nil {
			r.log.WithError(err).WithField("file", name).Error("error reading commit-log segment")
			return
		}
		if ctx.Err() != nil {
			return
		}

		if advancedFile {
			curIdx++
			curPos = 0
			continue
		}

		if !r.wait(ctx, watcher, ticker) {
			return
		}
	}
}

// wait blocks until ctx is done, a filesystem event arrives, or the poll
// ticker fires, returning false only when the caller should stop.
func (r *Reader) wait(ctx context.Context, watcher *fsnotify.Watcher, ticker *time.Ticker) bool {
	var events <-chan fsnotify.Event
	if watcher != nil {
		events = watcher.Events
	}
	select {
	case <-ctx.Done():
		return false
	case <-events:
		return true
	case <-ticker.C:
		return true
	}
}

// drainSegment reads whatever new frames are available in name starting
// at *pos, emitting Results and advancing *pos as it goes. It returns
// true if the segment appears to be sealed (a newer segment exists) and
// fully drained, meaning the caller should move on to the next segment.
func (r *Reader) drainSegment(ctx context.Context, name string, pos *int64, out chan<- Result) (bool, error) {
	path := filepath.Join(r.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, errors.Wrap(err, "open segment")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, errors.Wrap(err, "stat segment")
	}

	for {
		if ctx.Err() != nil {
			return false, nil
		}

		remaining := info.Size() - *pos
		if remaining <= 0 {
			break
		}

		buf := make([]byte, remaining)
		if _, err := f.ReadAt(buf, *pos); err != nil {
			return false, errors.Wrap(err, "read segment")
		}

		ev, consumed, derr := DecodeFrame(buf, time.Now())
		if derr != nil {
			if IsIncomplete(derr) {
				break
			}
			// Malformed-but-recoverable: advance past it and keep going.
			skip := &ParseSkip{File: name, Position: *pos, Reason: derr.Error()}
			r.log.WithFields(log.Fields{
				"file":     name,
				"position": *pos,
				"reason":   derr.Error(),
			}).Warn("skipping malformed commit-log frame")
			*pos += int64(consumed)
			select {
			case out <- Result{Skip: skip}:
			case <-ctx.Done():
				return false, nil
			}
			continue
		}

		*pos += int64(consumed)
		tok := cltoken.Token{File: name, Position: *pos}
		select {
		case out <- Result{Event: ev, Token: tok}:
		case <-ctx.Done():
			return false, nil
		}
	}

	segments, err := r.listSegments()
	if err != nil {
		return false, err
	}
	for _, s := range segments {
		if s > name {
			// A newer segment exists: this one is sealed, so any
			// remaining unreadable tail is abandoned rather than
			// awaited forever.
			return true, nil
		}
	}
	return false, nil
}
