package checkout

import (
	"fmt"
	"strings"

	"github.com/butterandcrumb/storefront-backend/internal/cart"
	"github.com/butterandcrumb/storefront-backend/internal/orderform"
)

func buildConfirmationEmail(storeName string, details orderform.Details, items []cart.LineItem, totalCents int64) EmailRequest {
	store := nonEmpty(storeName, "Butter & Crumb")
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", details.Name)
	fmt.Fprintf(&body, "Thanks for your order from %s! Here's what we're baking for you:\n\n", store)
	writeOrderLines(&body, items, totalCents)
	fmt.Fprintf(&body, "\nDelivery: %s, %s (%s)\n", details.DeliveryDate, details.DeliveryWindow, deliveryAddress(details))
	if details.Instructions != "" {
		fmt.Fprintf(&body, "Instructions: %s\n", details.Instructions)
	}
	body.WriteString("\nSee you soon!\n")

	return EmailRequest{
		To:      details.Email,
		Subject: fmt.Sprintf("Your %s order is confirmed", store),
		Text:    body.String(),
	}
}

func buildAdminAlertEmail(storeName, adminEmail string, details orderform.Details, items []cart.LineItem, totalCents int64, paymentID string) EmailRequest {
	var body strings.Builder
	fmt.Fprintf(&body, "New paid order (payment %s)\n\n", nonEmpty(paymentID, "n/a"))
	fmt.Fprintf(&body, "Customer: %s <%s> %s\n", details.Name, details.Email, details.Phone)
	fmt.Fprintf(&body, "Deliver: %s, %s to %s\n\n", details.DeliveryDate, details.DeliveryWindow, deliveryAddress(details))
	writeOrderLines(&body, items, totalCents)
	if details.Instructions != "" {
		fmt.Fprintf(&body, "\nInstructions: %s\n", details.Instructions)
	}

	return EmailRequest{
		To:      adminEmail,
		Subject: fmt.Sprintf("[%s] New order from %s", nonEmpty(storeName, "Butter & Crumb"), details.Name),
		Text:    body.String(),
	}
}

func writeOrderLines(body *strings.Builder, items []cart.LineItem, totalCents int64) {
	for _, item := range items {
		fmt.Fprintf(body, "  %dx %s (%s)\n", item.Quantity, item.Name, formatCents(item.UnitPriceCents*int64(item.Quantity)))
	}
	fmt.Fprintf(body, "  Total: %s\n", formatCents(totalCents))
}

func deliveryAddress(details orderform.Details) string {
	return fmt.Sprintf("%s, %s %s", details.Address, details.City, details.Zip)
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
