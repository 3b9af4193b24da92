//go:build e2e

package e2e

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// InfluxClient reads back what the sweep recorded in a running InfluxDB.
type InfluxClient struct {
	org    string
	bucket string
	client influxdb2.Client
}

// NewInfluxClient connects to an InfluxDB v2 server that is already up.
func NewInfluxClient(url, org, bucket, token string) *InfluxClient {
	return &InfluxClient{org: org, bucket: bucket, client: influxdb2.NewClient(url, token)}
}

// EnsureBucket creates the organisation and bucket when missing.
func (c *InfluxClient) EnsureBucket(ctx context.Context) error {
	orgs := c.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, c.org)
	if err != nil || org == nil {
		if org, err = orgs.CreateOrganizationWithName(ctx, c.org); err != nil {
			return fmt.Errorf("create org: %w", err)
		}
	}
	buckets := c.client.BucketsAPI()
	if b, err := buckets.FindBucketByName(ctx, c.bucket); err == nil && b != nil {
		return nil
	}
	if _, err := buckets.CreateBucketWithName(ctx, org, c.bucket); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// CountPoints returns how many values of field were written to measurement
// during the last ten minutes.
func (c *InfluxClient) CountPoints(ctx context.Context, measurement, field string) (int, error) {
	flux := fmt.Sprintf(`from(bucket:%q) |> range(start:-10m) |> filter(fn: (r) => r._measurement == %q and r._field == %q)`,
		c.bucket, measurement, field)
	res, err := c.client.QueryAPI(c.org).Query(ctx, flux)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	n := 0
	for res.Next() {
		n++
	}
	return n, res.Err()
}

// Close releases the underlying client.
func (c *InfluxClient) Close() { c.client.Close() }
