package instance

import "testing"

func TestGetIDPrefersExplicitInstanceID(t *testing.T) {
	t.Setenv("TABLEORDERS_INSTANCE_ID", "cron-a")
	t.Setenv("HOSTNAME", "pod-123")
	if got := GetID(); got != "cron-a" {
		t.Fatalf("expected cron-a, got %q", got)
	}
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("TABLEORDERS_INSTANCE_ID", " ")
	t.Setenv("HOSTNAME", "")
	if got := GetID(); got != fallbackID {
		t.Fatalf("expected fallback, got %q", got)
	}
}
