package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcavicchiaUADE/sepa-app/models"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.ArchiveOutcome("processed")
	r.ArchiveOutcome("processed")
	r.ArchiveOutcome("skipped")
	r.Staged(10)
	r.Staged(5)
	r.Rejected(models.Rejections{models.RejectMissingDescription: 2, models.RejectOther: 1})
	r.Rejected(models.Rejections{models.RejectMissingDescription: 1})
	r.Compacted(12)
	r.Phase("COMPACTED", 1500*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.archives.WithLabelValues("processed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.archives.WithLabelValues("skipped")))
	assert.Equal(t, 15.0, testutil.ToFloat64(r.rowsStaged))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.rowsRejected.WithLabelValues(string(models.RejectMissingDescription))))
	assert.Equal(t, 12.0, testutil.ToFloat64(r.rowsCompacted))
	assert.Equal(t, 1.5, testutil.ToFloat64(r.phaseDuration.WithLabelValues("COMPACTED")))

	r.Failed()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runFailed))

	at := time.Unix(1_730_800_000, 0)
	r.Done(4, 100, at)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.runFailed))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.merchants))
	assert.Equal(t, 100.0, testutil.ToFloat64(r.listings))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(r.lastSuccess))

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestPush(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath, gotMethod = req.URL.Path, req.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRecorder()
	r.Staged(1)
	require.NoError(t, r.Push(context.Background(), srv.URL))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/metrics/job/sepa_import", gotPath)
}

func TestPush_NoURL(t *testing.T) {
	assert.NoError(t, NewRecorder().Push(context.Background(), ""))
}

func TestPush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Error(t, NewRecorder().Push(context.Background(), srv.URL))
}
