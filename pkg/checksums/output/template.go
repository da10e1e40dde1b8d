package output

import (
	"bytes"
	"strings"
	"sync"
	"text/template"

	"github.com/dustin/go-humanize"
)

// TemplateFormatter renders a report through a text/template. The template
// sees the Report itself, so {{range .Entries}} walks the files.
type TemplateFormatter struct {
	templateStr string
	template    *template.Template
	mu          sync.Mutex
}

// NewTemplateFormatter creates a formatter for templateStr.
func NewTemplateFormatter(templateStr string) *TemplateFormatter {
	return &TemplateFormatter{templateStr: templateStr}
}

// SetTemplate replaces the template.
func (f *TemplateFormatter) SetTemplate(templateStr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templateStr = templateStr
	f.template = nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// {{bytes .Bytes}}
		"bytes": func(size int64) string {
			return humanize.IBytes(uint64(size))
		},
		// {{lower .Kind.String}}
		"lower": strings.ToLower,
		// {{comma .Total}}
		"comma": func(n int) string {
			return humanize.Comma(int64(n))
		},
	}
}

// Format writes the formatted output to the buffer.
func (f *TemplateFormatter) Format(w *bytes.Buffer, r *Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.template == nil {
		tmpl, err := template.New("output").Funcs(templateFuncs()).Parse(f.templateStr)
		if err != nil {
			return err
		}
		f.template = tmpl
	}
	return f.template.Execute(w, r)
}

// defaultTemplate mirrors the log record format.
const defaultTemplate = `{{range .Entries}}{{if $.Generate}}{{.Digest}}{{else}}{{.Kind}}{{end}}	{{.Path}}
{{end}}`

func init() {
	Register("template", func() Formatter {
		return NewTemplateFormatter(defaultTemplate)
	})
}

var _ Formatter = (*TemplateFormatter)(nil)
