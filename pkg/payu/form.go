package payu

import (
	"html/template"
	"io"
	"sort"
)

var formTemplate = template.Must(template.New("payu").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Redirecting to payment</title></head>
<body onload="document.forms[0].submit()">
<form method="POST" action="{{.Action}}">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
<noscript><button type="submit">Continue to payment</button></noscript>
</form>
</body>
</html>
`))

type formField struct {
	Name  string
	Value string
}

// RenderForm writes a self-submitting HTML form that posts r to the gateway.
func RenderForm(w io.Writer, r SignedRequest) error {
	values := r.Fields()
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]formField, 0, len(names))
	for _, name := range names {
		fields = append(fields, formField{Name: name, Value: values.Get(name)})
	}

	return formTemplate.Execute(w, struct {
		Action template.URL
		Fields []formField
	}{Action: template.URL(r.Action), Fields: fields})
}
