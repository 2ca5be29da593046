package rules

import "main/entity"

// Engine binds the cache to the pure classifier; this is the categorizer
// handed to the sampler.
type Engine struct {
	cache *Cache
}

func NewEngine(cache *Cache) *Engine {
	return &Engine{cache: cache}
}

func (e *Engine) Classify(appName, windowTitle, url string) entity.Category {
	return Classify(Input{AppName: appName, WindowTitle: windowTitle, URL: url}, e.cache.Snapshot())
}
