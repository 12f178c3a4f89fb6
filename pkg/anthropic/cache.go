package anthropic

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint set to a 1-hour TTL. Every adapter call in this pipeline
// shares the same fixed system preamble, so the cache write on the first
// call is reused by every later call within the TTL window regardless of
// which provider-facing operation (generate/validate/synthesize) issued it.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "1h",
			},
		},
	}
}
