package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordMutation(t *testing.T) {
	before := testutil.ToFloat64(MutationsTotal.WithLabelValues("expense", "amend", "CONCURRENT_UPDATE"))
	RecordMutation("expense", "amend", "CONCURRENT_UPDATE")
	after := testutil.ToFloat64(MutationsTotal.WithLabelValues("expense", "amend", "CONCURRENT_UPDATE"))
	assert.Equal(t, before+1, after)
}

func TestRecordRetry(t *testing.T) {
	before := testutil.ToFloat64(RetriesTotal)
	RecordRetry(1, errors.New("busy"))
	RecordRetry(2, errors.New("busy"))
	assert.Equal(t, before+2, testutil.ToFloat64(RetriesTotal))
}

func TestObserveBalance(t *testing.T) {
	before := testutil.ToFloat64(BalanceFailures.WithLabelValues("fatal_data"))
	ObserveBalance(3*time.Millisecond, "")
	ObserveBalance(time.Millisecond, "fatal_data")
	assert.Equal(t, before+1, testutil.ToFloat64(BalanceFailures.WithLabelValues("fatal_data")))
}

func TestRecordEvent(t *testing.T) {
	okBefore := testutil.ToFloat64(EventsTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(EventsTotal.WithLabelValues("error"))
	RecordEvent(nil)
	RecordEvent(errors.New("redis down"))
	assert.Equal(t, okBefore+1, testutil.ToFloat64(EventsTotal.WithLabelValues("ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(EventsTotal.WithLabelValues("error")))
}
