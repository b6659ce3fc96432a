package watcher

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"github.com/mr1hm/go-accident-alerts/internal/api"
	"github.com/mr1hm/go-accident-alerts/internal/config"
	"github.com/mr1hm/go-accident-alerts/internal/ledger"
	"github.com/mr1hm/go-accident-alerts/internal/models"
)

func TestEngine_AgainstLedgerServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := ledger.New(ledger.Options{AssignIDs: true})
	router := gin.New()
	api.NewHandler(l, nil, config.Default().Map).RegisterRoutes(router)

	server := httptest.NewServer(router)
	defer server.Close()

	esc := &recordingEscalator{}
	e := newEngine(NewHTTPFetcher(server.URL, server.Client()), esc, PolicySequence)
	ctx := context.Background()

	// Empty ledger.
	if _, err := e.Poll(ctx); err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if st := e.View(); st.Summary.Total != 0 || st.Banner {
		t.Errorf("unexpected empty view: %+v", st)
	}

	for _, sev := range []string{"Low", "High", "Medium"} {
		l.Ingest(models.Alert{"severity": sev, "location_text": sev + " street"})
	}
	res, err := e.Poll(ctx)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, res.Arrivals); diff != "" {
		t.Errorf("unexpected arrivals (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1}, esc.indexes()); diff != "" {
		t.Errorf("unexpected escalations (-want +got):\n%s", diff)
	}

	st := e.View()
	if st.Summary.Total != 3 || st.Summary.High != 1 {
		t.Errorf("unexpected summary: %+v", st.Summary)
	}
	if st.Banner {
		t.Error("latest alert is Medium, banner should be off")
	}
	if st.Rows[0].Location != "Medium street" {
		t.Errorf("rows should be newest first, got %+v", st.Rows[0])
	}

	// Nothing new: no repeat escalation.
	if _, err := e.Poll(ctx); err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if len(esc.indexes()) != 1 {
		t.Errorf("expected exactly one escalation, got %v", esc.indexes())
	}

	// Ledger goes away: view is kept.
	before := e.View()
	server.Close()
	if _, err := e.Poll(ctx); err == nil {
		t.Fatal("expected poll to fail against a closed server")
	}
	if diff := cmp.Diff(before, e.View()); diff != "" {
		t.Errorf("failed poll changed the view (-before +after):\n%s", diff)
	}
}
