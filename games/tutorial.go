package games

import (
	"html/template"
	"strings"

	"partyboard/session"
)

var tutorialTmpl = template.Must(template.New("tutorial").Parse(`<div class="tutorial">
  <div class="objective">
    <p><strong>Objective:</strong><br><span>{{.Objective}}</span></p>
  </div>
{{- if .Tip}}
  <div class="tip">
    <p><strong>Tip:</strong> {{.Tip}}</p>
  </div>
{{- end}}
  <p class="input">Input: {{.Input}}</p>
</div>`))

type tutorialData struct {
	Objective string
	Tip       string
	Input     string
}

// NewTutorial renders a tutorial with the standard layout. Text is escaped.
func NewTutorial(title, objective, tip, input string) session.Tutorial {
	var b strings.Builder
	if err := tutorialTmpl.Execute(&b, tutorialData{Objective: objective, Tip: tip, Input: input}); err != nil {
		// only reachable with a broken template
		panic(err)
	}
	return session.Tutorial{Title: title, HTMLBody: b.String()}
}
