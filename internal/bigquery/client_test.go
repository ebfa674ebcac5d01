package bigquery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"
)

func newTestRunner(t *testing.T, handler http.HandlerFunc) *ServiceRunner {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	r, err := NewServiceRunner(context.Background(), "proj",
		option.WithoutAuthentication(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewServiceRunner() error: %v", err)
	}
	return r
}

func TestServiceRunnerQuery(t *testing.T) {
	var got bq.QueryRequest
	var path string
	r := newTestRunner(t, func(w http.ResponseWriter, req *http.Request) {
		path = req.URL.Path
		if req.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", req.Method)
		}
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"jobComplete": true,
			"schema": {"fields": [{"name": "package"}, {"name": "score"}]},
			"rows": [
				{"f": [{"v": "requests"}, {"v": "12.5"}]},
				{"f": [{"v": "flask"}, {"v": null}]}
			]
		}`))
	})

	rows, err := r.Query(context.Background(), "SELECT 1", map[string][]string{
		"packages": {"requests", "flask"},
		"patterns": {"eval"},
	})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}

	if !strings.HasSuffix(path, "/projects/proj/queries") {
		t.Errorf("path = %q", path)
	}
	if got.Query != "SELECT 1" || got.ParameterMode != "NAMED" {
		t.Errorf("request = %+v", got)
	}
	if got.UseLegacySql == nil || *got.UseLegacySql {
		t.Error("legacy SQL should be disabled")
	}
	if len(got.QueryParameters) != 2 {
		t.Fatalf("parameters = %d, want 2", len(got.QueryParameters))
	}
	p := got.QueryParameters[0]
	if p.Name != "packages" || p.ParameterType.Type != "ARRAY" || p.ParameterType.ArrayType.Type != "STRING" {
		t.Errorf("first parameter = %+v", p)
	}
	if len(p.ParameterValue.ArrayValues) != 2 || p.ParameterValue.ArrayValues[1].Value != "flask" {
		t.Errorf("array values = %+v", p.ParameterValue.ArrayValues)
	}

	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["package"] != "requests" || rows[0]["score"] != "12.5" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if _, ok := rows[1]["score"]; ok {
		t.Errorf("NULL cell should be absent, got %v", rows[1])
	}
}

func TestServiceRunnerIncompleteJob(t *testing.T) {
	r := newTestRunner(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jobComplete": false}`))
	})

	_, err := r.Query(context.Background(), "SELECT 1", nil)
	if err == nil || !strings.Contains(err.Error(), "did not complete") {
		t.Errorf("error = %v, want incomplete job error", err)
	}
}

func TestServiceRunnerHTTPError(t *testing.T) {
	r := newTestRunner(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "access denied"}}`))
	})

	_, err := r.Query(context.Background(), "SELECT 1", nil)
	if err == nil || !strings.Contains(err.Error(), "run query") {
		t.Errorf("error = %v, want wrapped query error", err)
	}
}
