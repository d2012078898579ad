package app

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"license_notifier/internal/domain/license"
	"license_notifier/internal/domain/notification"
)

// tierStyle drives wording and colors; it never changes who gets mailed.
type tierStyle struct {
	Prefix string
	Color  string
	Badge  string
}

var tierStyles = map[notification.Tier]tierStyle{
	notification.TierCritical: {Prefix: "[URGENT] ", Color: "#DC2626", Badge: "Critical"},
	notification.TierHigh:     {Prefix: "[IMPORTANT] ", Color: "#EA580C", Badge: "High"},
	notification.TierMedium:   {Prefix: "", Color: "#D97706", Badge: "Medium"},
	notification.TierLow:      {Prefix: "", Color: "#2563EB", Badge: "Low"},
}

// ReminderContent is the rendered subject and bodies for one license reminder.
type ReminderContent struct {
	Subject string
	HTML    string
	Text    string
}

type reminderData struct {
	ToolName   string
	VendorName string
	ClientName string
	Quantity   int
	Expiration string
	When       string
	Tier       notification.Tier
	Style      tierStyle
}

var reminderHTML = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background-color: #f3f4f6; margin: 0; padding: 0; }
        .container { max-width: 600px; margin: 20px auto; background: white; border-radius: 8px; overflow: hidden; }
        .header { background: {{.Style.Color}}; color: white; padding: 20px; }
        .header h1 { margin: 0; font-size: 20px; }
        .content { padding: 20px; color: #374151; line-height: 1.6; }
        .data-table { width: 100%; border-collapse: collapse; margin-top: 15px; }
        .data-table td { padding: 8px 12px; border-bottom: 1px solid #e5e7eb; }
        .footer { padding: 15px 20px; text-align: center; font-size: 11px; color: #9ca3af; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>{{.ToolName}} license {{.When}}</h1></div>
        <div class="content">
            <p>Priority: <strong>{{.Style.Badge}}</strong></p>
            <table class="data-table">
                <tr><td>Tool</td><td>{{.ToolName}}</td></tr>
                {{if .VendorName}}<tr><td>Vendor</td><td>{{.VendorName}}</td></tr>{{end}}
                {{if .ClientName}}<tr><td>Client</td><td>{{.ClientName}}</td></tr>{{end}}
                <tr><td>Quantity</td><td>{{.Quantity}}</td></tr>
                <tr><td>Expiration date</td><td>{{.Expiration}}</td></tr>
            </table>
            <p>Please arrange the renewal before the license lapses.</p>
        </div>
        <div class="footer">Sent automatically by License Manager</div>
    </div>
</body>
</html>`))

func describeWhen(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("expired %d days ago", -days)
	case days == 0:
		return "expires today"
	case days == 1:
		return "expires tomorrow"
	default:
		return fmt.Sprintf("expires in %d days", days)
	}
}

// BuildReminder renders the reminder for a license that is days away from expiry.
func BuildReminder(lic *license.License, days int) (*ReminderContent, error) {
	tier := notification.TierForDays(days)
	data := reminderData{
		ToolName:   lic.ToolName,
		VendorName: lic.VendorName,
		ClientName: lic.ClientName.String,
		Quantity:   lic.Quantity,
		Expiration: lic.ExpirationDate.Format("2006-01-02"),
		When:       describeWhen(days),
		Tier:       tier,
		Style:      tierStyles[tier],
	}

	var html bytes.Buffer
	if err := reminderHTML.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("failed to render reminder for license %d: %w", lic.ID, err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s license %s (%s).\n\n", data.ToolName, data.When, data.Expiration)
	if data.VendorName != "" {
		fmt.Fprintf(&text, "Vendor: %s\n", data.VendorName)
	}
	if data.ClientName != "" {
		fmt.Fprintf(&text, "Client: %s\n", data.ClientName)
	}
	fmt.Fprintf(&text, "Quantity: %d\n\nPlease arrange the renewal before the license lapses.\n", data.Quantity)

	return &ReminderContent{
		Subject: fmt.Sprintf("%sLicense %s: %s", data.Style.Prefix, data.When, data.ToolName),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}
