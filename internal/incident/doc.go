// Package incident holds the domain records shared by the triage engine and
// its persistence backends: incidents, CMS log entries, known failure
// patterns, the Store contract, and the known-failure matching rule.
package incident
