// Package translate renders transcript lines into target languages through
// an OpenAI-compatible chat completion API.
//
// The Client handles transport: request shaping, JSON-only response format,
// and retry with exponential backoff for timeouts, rate limits, and server
// errors. The Translator handles semantics: fixed-size batching, pairing
// responses back to inputs by position, and retrying batches whose response
// cannot be paired. Partial results are never surfaced; a language either
// translates completely or fails.
package translate
