package web

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type templates struct {
	page  *template.Template
	board *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"deref": func(p *int) int {
			if p == nil {
				return 0
			}
			return *p
		},
	}
}

func loadTemplates() *templates {
	page := template.Must(template.New("page").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Tic-Tac-Toe</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org/dist/ext/sse.js"></script>
<style>` + styles + `</style>
</head><body>{{template "content" .}}</body></html>`))
	// Define the board template within the same set so the page can include it
	template.Must(page.New("board").Parse(boardTemplate))
	template.Must(page.New("content").Parse(`
<div class="game" hx-ext="sse" sse-connect="/events">
  <div sse-swap="board">{{template "board" .}}</div>
  <form action="/new" method="post"><button type="submit" class="new-game">New game</button></form>
</div>`))
	// Standalone board template used for fragment rendering
	board := template.Must(template.New("board_only").Funcs(funcs()).Parse(boardTemplate))
	return &templates{page: page, board: board}
}

func renderTemplate(t *template.Template, name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if name == "" {
		err = t.Execute(&buf, data)
	} else {
		err = t.ExecuteTemplate(&buf, name, data)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const boardTemplate = `
<div id="board">
  <div class="game-board">
    <div class="status">{{.View.Status}}</div>
    {{range .View.Rows}}
    <div class="board-row">
      {{range .}}
      <form hx-post="/play" hx-target="#board" hx-swap="outerHTML" action="/play" method="post">
        <input type="hidden" name="cell" value="{{.Index}}">
        <button type="submit" class="square{{if .Highlight}} highlighted{{end}}">{{.Mark}}</button>
      </form>
      {{end}}
    </div>
    {{end}}
  </div>
  <div class="game-info">
    <form hx-post="/sort" hx-target="#board" hx-swap="outerHTML" action="/sort" method="post">
      <button type="submit" class="sort">{{.View.SortLabel}}</button>
    </form>
    <ol start="{{.View.Start}}"{{if not .View.Ascending}} reversed{{end}}>
      {{range .View.HistoryEntries}}
      <li>
        {{if .IsCurrent}}<div class="current">{{.Label}}</div>{{else}}
        <form hx-post="/jump" hx-target="#board" hx-swap="outerHTML" action="/jump" method="post">
          <input type="hidden" name="move" value="{{deref .Target}}">
          <button type="submit">{{.Label}}</button>
        </form>{{end}}
      </li>
      {{end}}
    </ol>
  </div>
</div>
`

const styles = `
.game { display: flex; flex-direction: column; gap: 1em; font-family: sans-serif; }
#board { display: flex; gap: 2em; }
.board-row { display: flex; }
.board-row form { margin: 0; }
.square { width: 48px; height: 48px; font-size: 24px; font-weight: bold; margin: -1px -1px 0 0; }
.square.highlighted { background: #ffe066; }
.status { margin-bottom: 10px; }
`

const sessionCookie = "session_id"

// sessionID returns the session cookie value, or "".
func sessionID(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	return ""
}

func setSessionCookie(w http.ResponseWriter, id string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
}
