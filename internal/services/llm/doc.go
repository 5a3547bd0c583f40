// Package llm provides the chat completion client used by the research,
// summary, and scripting stages. It supports plain and streamed completions
// with bounded retry on transient failures.
package llm
