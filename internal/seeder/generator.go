package seeder

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// slug turns generated words into a lowercase resource name.
func slug(words ...string) string {
	joined := strings.Join(words, "-")
	joined = strings.ToLower(joined)
	return strings.ReplaceAll(joined, " ", "-")
}

// TenantName generates a tenant identifier.
func TenantName() string {
	return slug(gofakeit.Company())
}

// DataCoreName generates a data core name.
func DataCoreName() string {
	return slug(gofakeit.ProductName())
}

// FlowTypeName generates a flow type name with a version suffix.
func FlowTypeName() string {
	return fmt.Sprintf("%s.%d", slug(gofakeit.HackerNoun()), gofakeit.Number(0, 3))
}

// EventTypeName generates an event type name with a version suffix.
func EventTypeName() string {
	return fmt.Sprintf("%s.%s.%d", slug(gofakeit.HackerNoun()), gofakeit.HackerVerb(), gofakeit.Number(0, 3))
}

// Payload generates a webhook-shaped JSON payload.
func Payload() map[string]any {
	return map[string]any{
		"orderId":   gofakeit.UUID(),
		"customer":  gofakeit.Name(),
		"email":     gofakeit.Email(),
		"amount":    gofakeit.Price(1, 5000),
		"currency":  gofakeit.CurrencyShort(),
		"ip":        gofakeit.IPv4Address(),
		"userAgent": gofakeit.UserAgent(),
		"occurredAt": gofakeit.DateRange(
			time.Now().Add(-30*24*time.Hour), time.Now(),
		).UTC().Format(time.RFC3339),
	}
}
