package common

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestRequestContext_StepsAndUsage(t *testing.T) {
	rc := NewRequestContext("0123456789abcdef", "process")
	if rc.RequestID == "" {
		t.Fatal("expected a request id")
	}

	rc.StartStep("ocr")
	rc.StartSubStep("mistral_ocr_call")
	rc.EndSubStep("2 pages")
	rc.EndStep("success", &TokenUsage{InputTokens: 2, TotalTokens: 2, CostUSD: 0.002}, nil)

	rc.StartStep("translate")
	rc.EndStep("failed", nil, errors.New("boom"))

	if len(rc.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(rc.Steps))
	}
	if len(rc.Steps[0].SubSteps) != 1 || rc.Steps[0].SubSteps[0].Details != "2 pages" {
		t.Errorf("expected sub-step to be recorded on the first step, got %+v", rc.Steps[0].SubSteps)
	}
	if rc.Steps[1].Error != "boom" {
		t.Errorf("expected error to be recorded, got %q", rc.Steps[1].Error)
	}
	if rc.TotalUsage.TotalTokens != 2 {
		t.Errorf("expected usage from successful step only, got %d", rc.TotalUsage.TotalTokens)
	}

	summary := rc.GetSummary()
	if summary["total_steps"].(int) != 2 {
		t.Errorf("expected total_steps 2, got %v", summary["total_steps"])
	}
}

func TestEndSubStep_WithoutStartIsNoop(t *testing.T) {
	rc := NewRequestContext("s", "refine")
	rc.EndSubStep("ignored")
	if len(rc.CurrentSubSteps) != 0 {
		t.Fatalf("expected no sub-steps, got %d", len(rc.CurrentSubSteps))
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[int]string{
		7:       "7",
		1234:    "1,234",
		1000005: "1,000,005",
	}
	for in, want := range cases {
		if got := formatNumber(in); got != want {
			t.Errorf("formatNumber(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestConfigureLogger(t *testing.T) {
	defer ConfigureLogger("info", "text")

	ConfigureLogger("debug", "json")
	if Logger().GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %v", Logger().GetLevel())
	}

	ConfigureLogger("nonsense", "text")
	if Logger().GetLevel() != logrus.InfoLevel {
		t.Errorf("expected fallback to info, got %v", Logger().GetLevel())
	}
}
