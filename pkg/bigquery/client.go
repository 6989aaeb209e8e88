package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/orderbridge-backend/pkg/config"
	"github.com/angelmondragon/orderbridge-backend/pkg/gcp"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// Client is the analytics dataset handle. Tables are registered through
// EnsureTable; Ping re-checks every registered table.
type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	logg    *logger.Logger

	mu        sync.Mutex
	tables    []string
	inserters map[string]*bigquery.Inserter
}

// TableSpec describes a table the caller writes to.
type TableSpec struct {
	Name   string
	Schema bigquery.Schema
	// PartitionField enables daily time partitioning on that column when the
	// table is created here.
	PartitionField string
	Create         bool
}

func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID, ok := gcp.ProjectID(gcpCfg)
	if !ok {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}

	bqClient, err := bigquery.NewClient(ctx, projectID, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{
		client:    bqClient,
		dataset:   bqClient.Dataset(datasetID),
		logg:      logg,
		inserters: map[string]*bigquery.Inserter{},
	}

	checkCtx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()
	if _, err := c.dataset.Metadata(checkCtx); err != nil {
		_ = bqClient.Close()
		if IsNotFound(err) {
			return nil, fmt.Errorf("dataset %q does not exist", datasetID)
		}
		return nil, fmt.Errorf("checking dataset %q: %w", datasetID, err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "dataset", datasetID), "bigquery client initialized")
	}
	return c, nil
}

// EnsureTable verifies the table exists, creating it when spec.Create is set.
func (c *Client) EnsureTable(ctx context.Context, spec TableSpec) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return errTableNameRequired
	}

	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	table := c.dataset.Table(name)
	_, err := table.Metadata(ctx)
	switch {
	case err == nil:
	case IsNotFound(err) && spec.Create:
		meta := &bigquery.TableMetadata{Schema: spec.Schema}
		if spec.PartitionField != "" {
			meta.TimePartitioning = &bigquery.TimePartitioning{
				Type:  bigquery.DayPartitioningType,
				Field: spec.PartitionField,
			}
		}
		if err := table.Create(ctx, meta); err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("creating table %q: %w", name, err)
		}
		if c.logg != nil {
			c.logg.Info(c.logg.WithField(ctx, "table", name), "bigquery table created")
		}
	case IsNotFound(err):
		return fmt.Errorf("table %q does not exist", name)
	default:
		return fmt.Errorf("checking table %q: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inserters[name]; !ok {
		c.tables = append(c.tables, name)
		c.inserters[name] = table.Inserter()
	}
	return nil
}

// Ping verifies the dataset and every registered table are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()
	if _, err := c.dataset.Metadata(ctx); err != nil {
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}
	c.mu.Lock()
	tables := append([]string(nil), c.tables...)
	c.mu.Unlock()
	for _, name := range tables {
		if _, err := c.dataset.Table(name).Metadata(ctx); err != nil {
			return fmt.Errorf("checking table %q: %w", name, err)
		}
	}
	return nil
}

// InsertRows streams rows into a table previously registered with EnsureTable.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	if len(rows) == 0 {
		return nil
	}
	c.mu.Lock()
	inserter, ok := c.inserters[strings.TrimSpace(table)]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("table %q not registered", table)
	}
	return inserter.Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// IsNotFound reports a 404 from the BigQuery REST API.
func IsNotFound(err error) bool {
	return apiErrorCode(err) == http.StatusNotFound
}

func isAlreadyExists(err error) bool {
	return apiErrorCode(err) == http.StatusConflict
}

func apiErrorCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code
	}
	return 0
}
