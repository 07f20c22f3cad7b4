package triage

import (
	"encoding/json"
	"fmt"
	"strings"
)

const phraseSystemPrompt = `You are Pack Assist, the IT support assistant for a warehouse packing floor.
Be natural, concise, and empathetic. Only greet when the user greeted you.
Start with a short casual opener such as "Gotcha" or "Apologies" when it fits.
Be formal when composing an email. Never invent order, container, or incident IDs.`

const intentSystemPrompt = `Classify the user's message into exactly one intent:
- greeting: the user greets
- thanks: the user expresses gratitude
- end_of_convo: the user wants to end the conversation
- new_issue: the user explicitly wants to log a new issue
- summary: the user asks for a summary, status, or details of an order, container, or incident
- normal: anything else, including directly reporting a problem

Respond with only one word: greeting, thanks, end_of_convo, new_issue, summary, or normal.`

const extractSystemPrompt = `You extract identifiers from warehouse support messages. Respond ONLY with JSON.

Formats:
- order_id: "ORD" followed by digits, e.g. ORD69021
- container_id: "CONT" followed by digits, e.g. CONT12345
- incident_id: "INC-" then an 8-digit date and a 6-digit time, e.g. INC-20250819-001143

Return full IDs exactly as they appear, for example:
{"order_id": "ORD12345", "container_id": null, "incident_id": null}
Use null for anything not present. Return {} if nothing is present.`

const confirmSystemPrompt = `You classify a user's reply to a yes/no support question.
Respond with only one word: issue_persists, issue_resolved, or unclear.`

func confirmPrompt(text string, q Question) string {
	var asked string
	switch q {
	case QuestionWorkaroundWorked:
		asked = "We suggested a workaround and asked the user whether it fixed the problem."
	default:
		asked = "Our logs show the order processed successfully, so we asked the user whether they still see an issue."
	}
	return fmt.Sprintf(`%s
They replied:

%q

- issue_persists: the problem continues
- issue_resolved: the problem is gone
- unclear: the reply is ambiguous or off-topic`, asked, text)
}

func greetingPrompt(text string) string {
	return fmt.Sprintf(`The user greeted you with %q.
Respond with a warm greeting, introduce yourself as Pack Assist, and ask how you can help. Say nothing else.`, text)
}

func thanksPrompt(text string) string {
	return fmt.Sprintf(`The user said %q to close out. Respond with a short, warm acknowledgement such as "Glad I could help!"`, text)
}

// workaroundHints adds failure-specific checks the floor team expects to see.
var workaroundHints = map[string]string{
	"Hazmat Issue":     "Please check the SKU table for details related to this hazmat SKU issue.",
	"Invalid Postcode": "Please verify the postcode in the order table for the affected order.",
}

func workaroundPrompt(text, failureType, workaround string) string {
	var b strings.Builder
	b.WriteString("Do not greet.\n\n")
	fmt.Fprintf(&b, "The user wrote: %q\n", text)
	fmt.Fprintf(&b, "We identified a known issue (%s) with their order or container.\n", failureType)
	fmt.Fprintf(&b, "The workaround is: %q\n\n", workaround)
	b.WriteString("Write a short, polite message suggesting this workaround. It is a known issue, so be direct.\n")
	if hint, ok := workaroundHints[failureType]; ok {
		b.WriteString(hint + "\n")
	}
	b.WriteString("Finish by asking whether the workaround fixed the problem so the incident can be closed.\n")
	b.WriteString("Put each sentence on its own line and separate the intro, the steps, and the closing question with blank lines.")
	return b.String()
}

func escalationPrompt(e *Escalation) string {
	facts, _ := json.MarshalIndent(e.facts(), "", "  ")
	return fmt.Sprintf(`Draft a professional escalation email to the IT team.

Facts:
%s

No subject line and no placeholders. Keep it short, formal, and clear.
Ask the IT team to investigate and resolve, and to reach out to the flow room for further details.
End with "Best Regards, IT Support Agent".`, facts)
}

func summaryPrompt(f *SummaryFacts) string {
	facts, _ := json.MarshalIndent(f, "", "  ")
	return fmt.Sprintf(`Compose a concise, human-friendly status summary from this JSON.
Prefer the incident details; mention the latest CMS status and any known workaround.

%s

No greeting. 3 to 6 short lines. Skip fields that are missing.`, facts)
}

func noticePrompt(n *Notice) string {
	ctx, _ := json.Marshal(n)
	return fmt.Sprintf(`Write one polite message for the user based on this context:
%s

If type is "notfound", say the incident, order, or container was not found and ask them to recheck or share another ID.
If type is "mismatch", explain that the incident belongs to a different order or container and ask which one to use.
No greeting; one or two sentences.`, ctx)
}

func missingIDPrompt(text string) string {
	return fmt.Sprintf(`The user wrote %q but did not give an Order ID or Container ID.
Do not greet. Casually and politely ask them to share either one so we can look into it.`, text)
}

func missingSummaryIDsPrompt(text string) string {
	return fmt.Sprintf(`The user asked for a summary (%q) but did not say what to summarize.
Write one short, friendly sentence asking for ANY of: Incident ID, Order ID, or Container ID. No greeting.`, text)
}
