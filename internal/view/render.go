package view

import (
	"fmt"
	"io"
	"text/template"
)

// pageTemplate は画面のテキスト表現。
var pageTemplate = template.Must(template.New("page").Parse(`Notification
{{if .Busy -}}
Loading...
{{else if not .Rows -}}
No notifications for today.
{{else -}}
{{range .Rows -}}
- {{.Customer}} | {{.ExpireLabel}} | View Details [{{.Key}}]
{{end -}}
{{end -}}
{{with .Modal}}
== Notification Details ==
Customer: {{.Customer}}
Broker: {{.Broker}}
Arrears Months: {{.ArrearsMonths}}
Arrears Amount: {{.ArrearsAmount}}
Monthly Interest: {{.MonthlyInterest}}
Investment: {{.Investment}}
Start Date: {{.StartDate}}
Due Date (Today): {{.DueDate}}
Rule: startDate + 1 month → notification at 12:00 AM ({{$.Zone}} time) if arrears exists.
{{end -}}
`))

// Render は画面の現在の状態を w に書き出す。
func (p *Page) Render(w io.Writer) error {
	return RenderSnapshot(w, p.Snapshot())
}

// RenderSnapshot は画面状態を w に書き出す。
func RenderSnapshot(w io.Writer, s Snapshot) error {
	if err := pageTemplate.Execute(w, s); err != nil {
		return fmt.Errorf("画面の描画に失敗: %w", err)
	}
	return nil
}
