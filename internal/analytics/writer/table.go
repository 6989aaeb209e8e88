package writer

import (
	"github.com/angelmondragon/orderbridge-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/orderbridge-backend/pkg/bigquery"
	"github.com/angelmondragon/orderbridge-backend/pkg/config"
)

// OrderEventsTable is the table spec the worker registers before consuming.
func OrderEventsTable(cfg config.BigQueryConfig) pkgbigquery.TableSpec {
	return pkgbigquery.TableSpec{
		Name:           cfg.OrderEventsTable,
		Schema:         types.OrderEventSchema,
		PartitionField: "occurred_at",
		Create:         cfg.CreateTables,
	}
}
