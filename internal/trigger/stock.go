package trigger

import (
	"fmt"
	"strings"

	"github.com/VladKvetkin/settlement/internal/entities"
	"github.com/VladKvetkin/settlement/internal/events"
)

// LowStockAlerts matches variants by id. A variant without a previous state
// never alerts.
func LowStockAlerts(event events.ProductUpdated, threshold int) []string {
	before := make(map[string]entities.Variant, len(event.Before))
	for _, variant := range event.Before {
		before[variant.ID] = variant
	}

	var alerts []string
	for _, after := range event.After {
		prev, ok := before[after.ID]
		if !ok {
			continue
		}

		if prev.Inventory >= threshold && after.Inventory < threshold {
			alerts = append(alerts, fmt.Sprintf(
				"LOW STOCK ALERT: Product %q (Variant: %s) has only %d units left.",
				event.Name,
				strings.TrimSpace(after.Color+" "+after.Size),
				after.Inventory,
			))
		}
	}

	return alerts
}
