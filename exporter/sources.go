package exporter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/xalatechnologies/aplus/binder"
	"github.com/xalatechnologies/aplus/compositor"
	"github.com/xalatechnologies/aplus/templates"
)

// sources gathers image bytes for one export. Each URL or prompt is resolved
// at most once, even when several modules ask for it at the same time.
type sources struct {
	fetcher Fetcher
	synth   Synthesizer
	timeout time.Duration
	logger  *log.Logger

	group singleflight.Group
	mu    sync.Mutex
	done  map[string]result
}

type result struct {
	data []byte
	err  error
}

func newSources(f Fetcher, s Synthesizer, timeout time.Duration, logger *log.Logger) *sources {
	return &sources{
		fetcher: f,
		synth:   s,
		timeout: timeout,
		logger:  logger,
		done:    make(map[string]result),
	}
}

// forSlots returns image bytes keyed by slot id. Slots whose source cannot be
// fetched or decoded are left out. pick maps slot j to a source index.
func (s *sources) forSlots(ctx context.Context, slots []templates.Slot, urls []string, c binder.Content, pick func(j, n int) int) map[string][]byte {
	out := make(map[string][]byte, len(slots))
	for j, slot := range slots {
		var key string
		var load func(context.Context) ([]byte, error)
		switch {
		case len(urls) > 0:
			url := urls[pick(j, len(urls))]
			key = "url:" + url
			load = func(ctx context.Context) ([]byte, error) { return s.fetch(ctx, url) }
		case s.synth != nil:
			prompt := promptFor(c, j)
			if prompt == "" {
				continue
			}
			key = "prompt:" + prompt
			load = func(ctx context.Context) ([]byte, error) { return s.synth.Synthesize(ctx, prompt) }
		default:
			continue
		}

		data, err := s.get(ctx, key, load)
		if err != nil {
			s.logger.Warn("image slot left empty", "slot", slot.ID, "source", key, "err", err)
			continue
		}
		out[slot.ID] = data
	}
	return out
}

func (s *sources) get(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	s.mu.Lock()
	r, ok := s.done[key]
	s.mu.Unlock()
	if ok {
		return r.data, r.err
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		data, err := load(ctx)
		if err == nil {
			err = compositor.CheckImage(data)
		}
		// A cancelled export says nothing about the source; do not remember it.
		if ctx.Err() == nil {
			s.mu.Lock()
			s.done[key] = result{data: data, err: err}
			s.mu.Unlock()
		}
		return data, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *sources) fetch(ctx context.Context, url string) ([]byte, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("no fetcher for %s", url)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.fetcher.Fetch(ctx, url)
}

// promptFor picks the description for image slot j: its own description when
// there is one, else the first description, else the headline.
func promptFor(c binder.Content, j int) string {
	descs := make([]string, 0, len(c.ImageDescriptions))
	for _, d := range c.ImageDescriptions {
		if d = strings.TrimSpace(d); d != "" {
			descs = append(descs, d)
		}
	}
	switch {
	case j < len(descs):
		return descs[j]
	case len(descs) > 0:
		return descs[0]
	default:
		return strings.TrimSpace(c.Headline)
	}
}
