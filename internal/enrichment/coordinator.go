package enrichment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sentineltrace/threat-intel/internal/feeds/cache"
	"github.com/sentineltrace/threat-intel/internal/model"
	"github.com/sentineltrace/threat-intel/internal/resilience"
)

// perProviderTimeout bounds a single provider call so one slow
// upstream can't stall the whole fan-out.
const perProviderTimeout = 8 * time.Second

// Coordinator fans an enrichment request out across every provider
// that supports the indicator's type, in parallel, isolating failures
// per provider and consulting a local TTL cache before making a call.
//
// Grounded on original_source/src/enrichment/mod.rs's EnrichmentCoordinator,
// adapted to goroutines + a per-provider circuit breaker.
type Coordinator struct {
	providers []Provider
	cache     *cache.Cache

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
	limiters map[string]*resilience.RateLimiter
}

// NewCoordinator builds a coordinator over the given providers, backed
// by c for TTL caching. c may be nil, in which case caching is skipped.
func NewCoordinator(providers []Provider, c *cache.Cache) *Coordinator {
	return &Coordinator{
		providers: providers,
		cache:     c,
		breakers:  make(map[string]*resilience.CircuitBreaker),
		limiters:  make(map[string]*resilience.RateLimiter),
	}
}

func (co *Coordinator) breakerFor(name string) *resilience.CircuitBreaker {
	co.mu.Lock()
	defer co.mu.Unlock()
	if b, ok := co.breakers[name]; ok {
		return b
	}
	b := resilience.NewCircuitBreakerAdaptive(30*time.Second, 6, 5, 0.5, 30*time.Second, 3)
	co.breakers[name] = b
	return b
}

// limiterFor throttles calls to a single provider to stay under the
// free-tier rate limits most reputation/WHOIS APIs enforce.
func (co *Coordinator) limiterFor(name string) *resilience.RateLimiter {
	co.mu.Lock()
	defer co.mu.Unlock()
	if l, ok := co.limiters[name]; ok {
		return l
	}
	l := resilience.NewRateLimiter(10, 1.0, time.Minute, 30)
	co.limiters[name] = l
	return l
}

func cacheKey(indicatorID, enrichmentType, provider string) string {
	return indicatorID + "|" + enrichmentType + "|" + provider
}

// Run invokes every applicable provider concurrently and returns one
// Result per provider that supports the indicator's type. A provider
// error never aborts the others.
func (co *Coordinator) Run(ctx context.Context, indicator model.Indicator) []Result {
	var applicable []Provider
	for _, p := range co.providers {
		if p.Supports(indicator.IocType) {
			applicable = append(applicable, p)
		}
	}
	if len(applicable) == 0 {
		return nil
	}

	results := make([]Result, len(applicable))
	var wg sync.WaitGroup
	wg.Add(len(applicable))

	for i, p := range applicable {
		go func(i int, p Provider) {
			defer wg.Done()
			results[i] = co.runOne(ctx, p, indicator)
		}(i, p)
	}
	wg.Wait()

	return results
}

func (co *Coordinator) runOne(ctx context.Context, p Provider, indicator model.Indicator) Result {
	key := cacheKey(indicator.ID.String(), p.EnrichmentType(), p.Name())

	if co.cache != nil {
		if raw, ok := co.cache.Get(key); ok {
			return Result{
				Provider:       p.Name(),
				EnrichmentType: p.EnrichmentType(),
				Document:       &Document{raw: raw},
				TTLHours:       p.TTLHours(),
				Cached:         true,
			}
		}
	}

	breaker := co.breakerFor(p.Name())
	if !breaker.Allow() {
		return Result{
			Provider:       p.Name(),
			EnrichmentType: p.EnrichmentType(),
			Err:            fmt.Errorf("%s: circuit open", p.Name()),
		}
	}

	if !co.limiterFor(p.Name()).Allow() {
		return Result{
			Provider:       p.Name(),
			EnrichmentType: p.EnrichmentType(),
			Err:            fmt.Errorf("%s: rate limit exceeded", p.Name()),
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, perProviderTimeout)
	defer cancel()

	doc, err := p.Enrich(callCtx, indicator)
	breaker.RecordResult(err == nil)
	if err != nil {
		return Result{Provider: p.Name(), EnrichmentType: p.EnrichmentType(), Err: err}
	}
	if doc == nil {
		return Result{Provider: p.Name(), EnrichmentType: p.EnrichmentType()}
	}

	if co.cache != nil {
		_ = co.cache.Set(key, doc.Bytes(), time.Duration(p.TTLHours())*time.Hour)
	}

	return Result{
		Provider:       p.Name(),
		EnrichmentType: p.EnrichmentType(),
		Document:       doc,
		TTLHours:       p.TTLHours(),
	}
}
