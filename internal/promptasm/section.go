// Package promptasm assembles the ordered list of prompt sections sent to
// the LLM ahead of the user's turn: a fixed ontology specification, a
// methodology guide, the current (possibly sliced) graph state, and
// optional chat history. Each section carries a cacheability flag so the
// provider transport can decide whether to mark it for prompt caching.
package promptasm

// Section is one ordered block of the assembled prompt.
type Section struct {
	// Name identifies the section; the LLM Engine renders it as the
	// section's heading in the system prompt.
	Name string

	// Ephemeral marks a section as safe to cache on the provider side
	// across turns that share the same prefix. Providers with no caching
	// primitive ignore the flag and the sections are concatenated verbatim.
	Ephemeral bool

	Text string
}
