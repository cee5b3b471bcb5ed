// Package timeseries executes stored query templates against InfluxDB and
// returns raw rows for prompt serialization. Query strings are opaque: no
// syntax validation happens here, they are passed through verbatim.
package timeseries

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"

	"github.com/RetrivaAI/retriva/engine/domain"
)

// Row is one flattened time-series record: column name to value.
type Row = map[string]any

// InfluxRepository runs Flux queries against one InfluxDB organization over
// a long-lived shared client.
type InfluxRepository struct {
	client influxdb2.Client
	query  api.QueryAPI
}

// New creates a repository bound to the organization configured for this
// deployment.
func New(url, token, org string) *InfluxRepository {
	client := influxdb2.NewClient(url, token)
	return &InfluxRepository{
		client: client,
		query:  client.QueryAPI(org),
	}
}

// Close releases the underlying HTTP client.
func (r *InfluxRepository) Close() {
	if r.client != nil {
		r.client.Close()
	}
}

// Query executes a Flux query and returns all rows. A rejected or failed
// query surfaces as ErrQueryFailed.
func (r *InfluxRepository) Query(ctx context.Context, flux string) ([]Row, error) {
	if err := domain.ValidateText("queryString", flux); err != nil {
		return nil, err
	}

	result, err := r.query.Query(ctx, flux)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("timeseries: query: %w: %w", domain.ErrQueryFailed, err)
	}

	var records []*query.FluxRecord
	for result.Next() {
		records = append(records, result.Record())
	}
	if err := result.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("timeseries: read result: %w: %w", domain.ErrQueryFailed, err)
	}
	return rowsFromRecords(records), nil
}

// rowsFromRecords flattens Flux records into plain column maps.
func rowsFromRecords(records []*query.FluxRecord) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		row := make(Row, len(rec.Values()))
		for k, v := range rec.Values() {
			row[k] = v
		}
		rows[i] = row
	}
	return rows
}
