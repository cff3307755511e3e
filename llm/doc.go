// Package llm defines the narrow model boundary used by the orchestration
// engine and ships two implementations: LangChainModel wrapping any
// langchaingo llms.Model, and OpenAIClient talking to OpenAI-compatible
// endpoints through go-openai.
//
// Nodes depend only on the Invoker interface, which keeps them trivial to
// test with fakes and indifferent to the provider behind it.
package llm
