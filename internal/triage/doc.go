// Package triage is the incident-triage dialogue engine for packassist.
//
// A Service accepts one user message per turn, serializes turns per
// session, and hands the session to the Controller. The Controller merges
// identifiers (Resolver), classifies intent, and walks the dialogue: CMS log
// lookup, known-failure matching, workaround and success confirmations
// (Interpreter), escalation through a Notifier, and status summaries
// (Summarizer). All natural-language work goes through the Oracle, which
// bounds every call and lets callers fall back to deterministic rules.
package triage
