package incident

import "testing"

func testPatterns() []FailurePattern {
	return []FailurePattern{
		{ID: 1, FailureType: "Invalid Postcode", Pattern: "%postcode is not valid%", Workaround: "Verify the postcode."},
		{ID: 2, FailureType: "Hazmat Issue", Pattern: "%Hazmat ID/Class%", Workaround: "Check the SKU hazmat class."},
		{ID: 3, FailureType: "Null Payload", Pattern: "", Workaround: "Repack into a new container."},
		{ID: 4, FailureType: "Second Null", Pattern: "   ", Workaround: "never used"},
	}
}

func TestMatchFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		payload  string
		wantOK   bool
		wantType string
	}{
		{"postcode error", "<Error>Selected postcode is not valid/deliverable</Error>", true, "Invalid Postcode"},
		{"case folded", "<ERROR>SELECTED POSTCODE IS NOT VALID</ERROR>", true, "Invalid Postcode"},
		{"hazmat", "<Error>Missing Hazmat ID/Class for SKU 991</Error>", true, "Hazmat Issue"},
		{"empty payload uses first null pattern", "", true, "Null Payload"},
		{"blank payload is null", "  \n", true, "Null Payload"},
		{"unknown error", "<Error>Label size mismatch</Error>", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := MatchFailure(testPatterns(), tt.payload)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.FailureType != tt.wantType {
				t.Errorf("FailureType = %q, want %q", got.FailureType, tt.wantType)
			}
		})
	}
}

func TestMatchFailure_NullPayloadWithoutNullPattern(t *testing.T) {
	t.Parallel()

	patterns := testPatterns()[:2]
	if _, ok := MatchFailure(patterns, ""); ok {
		t.Fatal("expected no match for empty payload without a null pattern")
	}
}

func TestMatchFailure_NullPatternNeverMatchesPayload(t *testing.T) {
	t.Parallel()

	patterns := []FailurePattern{
		{ID: 1, FailureType: "Null Payload", Pattern: ""},
		{ID: 2, FailureType: "Wildcards Only", Pattern: "%%"},
	}
	for _, payload := range []string{"anything", "<Error/>", "x"} {
		if p, ok := MatchFailure(patterns, payload); ok {
			t.Errorf("payload %q matched %q, want no match", payload, p.FailureType)
		}
	}
}

func TestMatchFailure_StoreOrderWins(t *testing.T) {
	t.Parallel()

	patterns := []FailurePattern{
		{ID: 1, FailureType: "first", Pattern: "%timeout%"},
		{ID: 2, FailureType: "second", Pattern: "%cms timeout%"},
	}
	got, ok := MatchFailure(patterns, "CMS timeout after 30s")
	if !ok {
		t.Fatal("expected a match")
	}
	if got.FailureType != "first" {
		t.Errorf("FailureType = %q, want %q", got.FailureType, "first")
	}
}

func TestMatchFailure_ReturnsCopy(t *testing.T) {
	t.Parallel()

	patterns := testPatterns()
	got, _ := MatchFailure(patterns, "postcode is not valid")
	got.Workaround = "mutated"
	if patterns[0].Workaround == "mutated" {
		t.Error("MatchFailure returned a pointer into the caller's slice")
	}
}
