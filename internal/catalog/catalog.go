// Package catalog provides the cached scroll catalog.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ashureev/whisperbridge/internal/domain"
)

// Source loads the full scroll catalog.
type Source interface {
	ListScrolls(ctx context.Context) ([]domain.Scroll, error)
}

// Catalog is an immutable snapshot of scroll titles and texts.
type Catalog struct {
	Epoch    uint64
	LoadedAt time.Time
	titles   []string
	texts    map[string]string
}

// New builds a catalog from scrolls in order. A repeated title keeps its
// first position and takes the later text.
func New(scrolls []domain.Scroll) *Catalog {
	c := &Catalog{texts: make(map[string]string, len(scrolls))}
	for _, s := range scrolls {
		if _, seen := c.texts[s.Title]; !seen {
			c.titles = append(c.titles, s.Title)
		}
		c.texts[s.Title] = s.Text
	}
	return c
}

// Titles returns the scroll titles in catalog order.
func (c *Catalog) Titles() []string {
	out := make([]string, len(c.titles))
	copy(out, c.titles)
	return out
}

// Len returns the number of scrolls.
func (c *Catalog) Len() int {
	return len(c.titles)
}

// Text returns the text for title, or the scroll-missing fallback.
func (c *Catalog) Text(title string) string {
	if text, ok := c.texts[title]; ok {
		return text
	}
	return domain.ScrollMissingText
}

// Provider owns the cached catalog. A cached snapshot is served until its
// epoch is older than the TTL; a TTL <= 0 keeps it until Refresh or
// Invalidate. Load errors are returned and never cached.
type Provider struct {
	source      Source
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time

	mu      sync.RWMutex
	current *Catalog
	epoch   uint64

	group singleflight.Group
}

const defaultLoadTimeout = 30 * time.Second

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLoadTimeout bounds one catalog load from the source.
func WithLoadTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.loadTimeout = d
		}
	}
}

// NewProvider creates a provider reading from source.
func NewProvider(source Source, ttl time.Duration, opts ...ProviderOption) *Provider {
	p := &Provider{source: source, ttl: ttl, loadTimeout: defaultLoadTimeout, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Catalog returns the cached catalog, loading it when absent or expired.
func (p *Provider) Catalog(ctx context.Context) (*Catalog, error) {
	p.mu.RLock()
	cur := p.current
	p.mu.RUnlock()
	if cur != nil && p.fresh(cur) {
		return cur, nil
	}
	return p.load(ctx, false)
}

// Refresh reloads the catalog regardless of age and starts a new epoch.
func (p *Provider) Refresh(ctx context.Context) (*Catalog, error) {
	return p.load(ctx, true)
}

// Invalidate drops the cached catalog; the next call to Catalog reloads it.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
}

// Epoch returns the epoch of the cached catalog, 0 when nothing is cached.
func (p *Provider) Epoch() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return 0
	}
	return p.current.Epoch
}

func (p *Provider) fresh(c *Catalog) bool {
	return p.ttl <= 0 || p.now().Sub(c.LoadedAt) < p.ttl
}

func (p *Provider) load(ctx context.Context, force bool) (*Catalog, error) {
	p.mu.RLock()
	seen := p.epoch
	p.mu.RUnlock()
	key := strconv.FormatUint(seen, 10)
	if force {
		key = "refresh:" + key
	}

	// The load is shared, so it must not die with the caller that started it.
	// Each caller still stops waiting when its own ctx is done.
	loadCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (any, error) {
		// Another caller may have finished a load since seen was read.
		if !force {
			p.mu.RLock()
			cur := p.current
			p.mu.RUnlock()
			if cur != nil && cur.Epoch > seen && p.fresh(cur) {
				return cur, nil
			}
		}

		lctx, cancel := context.WithTimeout(loadCtx, p.loadTimeout)
		defer cancel()
		scrolls, err := p.source.ListScrolls(lctx)
		if err != nil {
			return nil, fmt.Errorf("load scroll catalog: %w", err)
		}
		c := New(scrolls)

		p.mu.Lock()
		defer p.mu.Unlock()
		p.epoch++
		c.Epoch = p.epoch
		c.LoadedAt = p.now()
		p.current = c
		slog.Info("Scroll catalog loaded", "epoch", c.Epoch, "scrolls", c.Len())
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Catalog), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("load scroll catalog: %w", ctx.Err())
	}
}
