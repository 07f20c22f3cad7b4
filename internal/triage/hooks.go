package triage

// Hooks are optional callbacks fired by the dialogue engine. Nil fields are skipped.
type Hooks struct {
	OnTurn            func(intent Intent, outcome string, seconds float64)
	OnIncidentCreated func()
	OnEscalation      func(kind EscalationKind, err error)
	OnOracleCall      func(op string, seconds float64, usage Usage, err error)
	OnFallback        func(op string)
}

func (h Hooks) turn(intent Intent, outcome string, seconds float64) {
	if h.OnTurn != nil {
		h.OnTurn(intent, outcome, seconds)
	}
}

func (h Hooks) incidentCreated() {
	if h.OnIncidentCreated != nil {
		h.OnIncidentCreated()
	}
}

func (h Hooks) escalation(kind EscalationKind, err error) {
	if h.OnEscalation != nil {
		h.OnEscalation(kind, err)
	}
}

func (h Hooks) oracleCall(op string, seconds float64, usage Usage, err error) {
	if h.OnOracleCall != nil {
		h.OnOracleCall(op, seconds, usage, err)
	}
}

func (h Hooks) fallback(op string) {
	if h.OnFallback != nil {
		h.OnFallback(op)
	}
}
