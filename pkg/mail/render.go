package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sync"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

var (
	tmplOnce sync.Once
	tmplSet  *template.Template
	tmplErr  error
)

// WelcomeData feeds the welcome template sent on student intake.
type WelcomeData struct {
	FirstName       string
	LastName        string
	Room            string
	StartDate       string
	MonthlyRent     int64
	SecurityDeposit int64
	LaundryCharge   int64
	Mobile          string
	Email           string
}

// ReceiptData feeds the payment receipt template.
type ReceiptData struct {
	StudentName     string
	Room            string
	InvoiceKey      string
	ReceiptNo       string
	Period          string
	PaymentDate     string
	PaymentMethod   string
	MonthlyCharge   int64
	SecurityDeposit int64
	TotalAmount     int64
}

// Change is one old→new line in an update notice.
type Change struct {
	Field string
	Old   string
	New   string
}

// ChangeNoticeData feeds both update-notice templates.
type ChangeNoticeData struct {
	StudentName string
	Room        string
	Reference   string
	Changes     []Change
}

func loadTemplates() (*template.Template, error) {
	tmplOnce.Do(func() {
		tmplSet, tmplErr = template.New("mail").Funcs(template.FuncMap{
			"rupees": func(v int64) string { return fmt.Sprintf("₹%d", v) },
		}).ParseFS(templateFS, "templates/*.gohtml")
	})
	return tmplSet, tmplErr
}

// Render executes the named template into msg.HTML.
func Render(msg *Message) error {
	if msg.TemplateName == "" {
		return fmt.Errorf("mail: template name required")
	}
	set, err := loadTemplates()
	if err != nil {
		return fmt.Errorf("mail: parse templates: %w", err)
	}
	var buf bytes.Buffer
	if err := set.ExecuteTemplate(&buf, msg.TemplateName+".gohtml", msg.TemplateData); err != nil {
		return fmt.Errorf("mail: render %s: %w", msg.TemplateName, err)
	}
	msg.HTML = buf.String()
	return nil
}
