package budget

import "testing"

func TestEstimateTokensFromChars(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 0},
		{1, 1}, // ceil(1/4)=1
		{3, 1}, // ceil(3/4)=1
		{4, 1}, // ceil(4/4)=1
		{5, 2}, // ceil(5/4)=2
		{400, 100},
	}
	for _, c := range cases {
		got := EstimateTokensFromChars(c.in)
		if got != c.want {
			t.Fatalf("EstimateTokensFromChars(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestHeadroomTokensFloorsAtFixedMinimum(t *testing.T) {
	if HeadroomTokens(1000) != 256 {
		t.Fatalf("expected the 256-token floor for a small limit, got %d", HeadroomTokens(1000))
	}
	if HeadroomTokens(100_000) != 5_000 {
		t.Fatalf("expected 5%% of a large limit, got %d", HeadroomTokens(100_000))
	}
}

func TestRemainingContextUnboundedWhenLimitUnset(t *testing.T) {
	if RemainingContext(0, 2000) <= 0 {
		t.Fatal("a zero token limit means unbounded, so remaining must stay positive")
	}
}

func TestRemainingAndFits(t *testing.T) {
	limit := 128_000
	prompt := limit / 2
	rem := RemainingContext(limit, 2000)
	if rem <= 0 {
		t.Fatalf("remaining should be positive, got %d", rem)
	}
	if !FitsInContext(limit, 2000, prompt) {
		t.Fatal("prompt should fit when remaining is positive")
	}
	// Force overflow
	prompt = limit
	rem = RemainingContext(limit, 1)
	if !FitsInContext(limit, 1, 0) {
		t.Fatal("a zero-token prompt must always fit")
	}
	if FitsInContext(limit, 1, prompt) {
		t.Fatal("prompt should not fit when overflowed")
	}
	_ = rem
}

func TestTruncateToFitLeavesShortTextUntouched(t *testing.T) {
	text := "short text"
	if got := TruncateToFit(text, 1000); got != text {
		t.Fatalf("expected text untouched, got %q", got)
	}
}

func TestTruncateToFitTrimsOversizedText(t *testing.T) {
	text := ""
	for i := 0; i < 1000; i++ {
		text += "word "
	}
	got := TruncateToFit(text, 10)
	if EstimateTokens(got) > 10+1 {
		t.Fatalf("truncated text still estimates over budget: %d tokens", EstimateTokens(got))
	}
	if len(got) >= len(text) {
		t.Fatal("expected truncation to shorten the text")
	}
}

func TestTruncateToFitZeroBudgetLeavesTextUnchanged(t *testing.T) {
	text := "some text"
	if got := TruncateToFit(text, 0); got != text {
		t.Fatalf("a non-positive budget means no truncation, got %q", got)
	}
}
