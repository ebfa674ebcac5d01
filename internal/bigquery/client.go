package bigquery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"
)

// Row is one result row keyed by column name. NULL cells are absent.
type Row map[string]string

// QueryRunner executes a standard-SQL query with named STRING array parameters.
type QueryRunner interface {
	Query(ctx context.Context, sql string, arrays map[string][]string) ([]Row, error)
}

// ServiceRunner implements QueryRunner with the BigQuery REST API (jobs.query).
type ServiceRunner struct {
	svc     *bq.Service
	project string
}

// NewServiceRunner creates a runner billing queries to project.
func NewServiceRunner(ctx context.Context, project string, opts ...option.ClientOption) (*ServiceRunner, error) {
	opts = append([]option.ClientOption{option.WithScopes(bq.BigqueryScope)}, opts...)
	svc, err := bq.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery service: %w", err)
	}
	return &ServiceRunner{svc: svc, project: project}, nil
}

// Query runs sql synchronously and returns its rows.
func (r *ServiceRunner) Query(ctx context.Context, sql string, arrays map[string][]string) ([]Row, error) {
	legacy := false
	req := &bq.QueryRequest{
		Query:         sql,
		UseLegacySql:  &legacy,
		ParameterMode: "NAMED",
		TimeoutMs:     30000,
	}

	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		values := make([]*bq.QueryParameterValue, 0, len(arrays[name]))
		for _, v := range arrays[name] {
			values = append(values, &bq.QueryParameterValue{Value: v})
		}
		req.QueryParameters = append(req.QueryParameters, &bq.QueryParameter{
			Name: name,
			ParameterType: &bq.QueryParameterType{
				Type:      "ARRAY",
				ArrayType: &bq.QueryParameterType{Type: "STRING"},
			},
			ParameterValue: &bq.QueryParameterValue{ArrayValues: values},
		})
	}

	resp, err := r.svc.Jobs.Query(r.project, req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	if !resp.JobComplete {
		return nil, fmt.Errorf("query did not complete within %dms", req.TimeoutMs)
	}
	if resp.Schema == nil {
		return nil, nil
	}

	rows := make([]Row, 0, len(resp.Rows))
	for _, tr := range resp.Rows {
		row := make(Row, len(tr.F))
		for i, cell := range tr.F {
			if i >= len(resp.Schema.Fields) || cell.V == nil {
				continue
			}
			row[resp.Schema.Fields[i].Name] = fmt.Sprint(cell.V)
		}
		rows = append(rows, row)
	}
	slog.Debug("BigQuery query finished", "rows", len(rows))
	return rows, nil
}
