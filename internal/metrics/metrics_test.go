package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	sourceRowsTotal = nil
	sourceFailuresTotal = nil
	httpRequestsTotal = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if sourceRowsTotal == nil || sourceFailuresTotal == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveSource(t *testing.T) {
	Init()

	ObserveSource("uk_repd", 42, nil)
	if val := testutil.ToFloat64(sourceRowsTotal.WithLabelValues("uk_repd")); val != 42 {
		t.Errorf("Expected 42 rows for uk_repd, got %f", val)
	}

	ObserveSource("tec_register", 0, errors.New("boom"))
	if val := testutil.ToFloat64(sourceFailuresTotal.WithLabelValues("tec_register")); val != 1 {
		t.Errorf("Expected 1 failure for tec_register, got %f", val)
	}
	if val := testutil.ToFloat64(sourceRowsTotal.WithLabelValues("tec_register")); val != 0 {
		t.Errorf("Failed scrape must not add rows, got %f", val)
	}
}
