// Package assembly decides whether retrieved candidates are good enough to
// answer from, and turns them into the prompts sent to the generator.
//
// The Assembler takes candidates as plain data, so the answer policy can be
// exercised without an embedding provider or a generator.
package assembly
