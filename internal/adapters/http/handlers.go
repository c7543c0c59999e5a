package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"animeai/internal/adapters/http/middleware"
	"animeai/internal/application/orchestrators"
	"animeai/internal/application/projections"
	"animeai/internal/domain/anime"
	"animeai/internal/domain/credentials"
	"animeai/internal/domain/query"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// successRefresh is where a successful login or signup lands after one second.
const successRefresh = orchestrators.RouteHome

// readyTimeout bounds each readiness probe.
const readyTimeout = 2 * time.Second

// Genders offered on the signup form.
var Genders = []string{"Male", "Female", "Other", "Prefer not to say"}

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set), preventing XSS.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// pages holds each page parsed together with the layout.
var pages = mustParsePages("index.html", "login.html", "signup.html", "home.html", "search.html", "results.html", "error.html")

// baseFuncs are the parse-time functions. csrfField is rebound per request.
var baseFuncs = template.FuncMap{
	"csrfField":   func() template.HTML { return "" },
	"placeholder": func() string { return anime.PlaceholderImage },
	"renderMarkdown": func(md string) template.HTML {
		var buf bytes.Buffer
		if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
			return template.HTML(template.HTMLEscapeString(md))
		}
		return template.HTML(buf.String())
	},
}

func mustParsePages(names ...string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(names))
	for _, name := range names {
		out[name] = template.Must(template.New("layout.html").Funcs(baseFuncs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name))
	}
	return out
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// renderTemplate executes a page into a buffer, so a template failure still
// produces a clean 500.
func renderTemplate(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	base, ok := pages[name]
	if !ok {
		internalError(w, errors.New("unknown template "+name))
		return
	}
	tpl, err := base.Clone()
	if err != nil {
		internalError(w, err)
		return
	}
	tpl.Funcs(template.FuncMap{
		"csrfField": func() template.HTML { return csrf.TemplateField(r) },
	})

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	renderTemplate(w, r, status, "error.html", map[string]any{
		"Title":   http.StatusText(status),
		"Message": message,
	})
}

// visitorID returns the id the Visitor middleware attached.
func visitorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.VisitorFromContext(r.Context())
	if !ok {
		internalError(w, errors.New("request reached a page handler without a visitor"))
	}
	return id, ok
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	w.WriteHeader(http.StatusMethodNotAllowed)
}

// handleEntry serves GET / and the 404 page for every unmatched path.
func handleEntry(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		renderError(w, r, http.StatusNotFound, "That page does not exist.")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, "GET")
		return
	}
	renderTemplate(w, r, http.StatusOK, "index.html", map[string]any{"Title": "Welcome"})
}

// handleLogin handles GET and POST /login
func handleLogin(w http.ResponseWriter, r *http.Request) {
	vid, ok := visitorID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		view, err := projections.QueryGetLoginPage(r.Context(), projections.GetAuthPageQuery{VisitorID: vid},
			projections.GetAuthPageDeps{Slots: stores.Handoff, Now: timeNow})
		if err != nil {
			internalError(w, err)
			return
		}
		renderTemplate(w, r, http.StatusOK, "login.html", map[string]any{
			"Title":    "Log in",
			"Notice":   view.Notice,
			"Email":    view.Email,
			"Remember": view.Remember,
		})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		form := credentials.Login{
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
			Remember: r.PostFormValue("remember") != "",
		}
		result, err := orchestrators.ExecuteLogin(r.Context(),
			orchestrators.LoginInput{VisitorID: vid, Form: form},
			orchestrators.LoginDeps{Backend: backend, Slots: stores.Handoff, Now: timeNow})
		if err != nil {
			internalError(w, err)
			return
		}
		if result.Redirect != "" {
			redirect(w, r, result.Redirect)
			return
		}
		data := map[string]any{
			"Title":    "Log in",
			"Email":    form.Email,
			"Remember": form.Remember,
			"Error":    result.Error,
			"Success":  result.Success,
		}
		if result.Success != "" {
			data["Refresh"] = successRefresh
		}
		renderTemplate(w, r, http.StatusOK, "login.html", data)

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// handleSignup handles GET and POST /signup
func handleSignup(w http.ResponseWriter, r *http.Request) {
	vid, ok := visitorID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		view, err := projections.QueryGetSignupPage(r.Context(), projections.GetAuthPageQuery{VisitorID: vid},
			projections.GetAuthPageDeps{Slots: stores.Handoff, Now: timeNow})
		if err != nil {
			internalError(w, err)
			return
		}
		renderTemplate(w, r, http.StatusOK, "signup.html", map[string]any{
			"Title":   "Sign up",
			"Notice":  view.Notice,
			"Hint":    view.Hint,
			"Genders": Genders,
		})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		form := credentials.Signup{
			Name:     r.PostFormValue("name"),
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
			Gender:   r.PostFormValue("gender"),
		}
		result, err := orchestrators.ExecuteSignup(r.Context(),
			orchestrators.SignupInput{VisitorID: vid, Form: form},
			orchestrators.SignupDeps{Backend: backend, Welcome: welcomer})
		if err != nil {
			internalError(w, err)
			return
		}
		if result.Redirect != "" {
			redirect(w, r, result.Redirect)
			return
		}
		data := map[string]any{
			"Title":   "Sign up",
			"Name":    form.Name,
			"Email":   form.Email,
			"Gender":  form.Gender,
			"Genders": Genders,
			"Hint":    credentials.PasswordHint(form.Password),
			"Error":   result.Error,
			"Success": result.Success,
		}
		if result.Success != "" {
			data["Refresh"] = successRefresh
		}
		renderTemplate(w, r, http.StatusOK, "signup.html", data)

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// handlePasswordHint handles GET /signup/password-hint?length=n and answers
// with the JSON hint. Only the length is sent; the password never leaves the page.
func handlePasswordHint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	n := 0
	if raw := r.URL.Query().Get("length"); raw != "" {
		var err error
		if n, err = strconv.Atoi(raw); err != nil || n < 0 {
			http.Error(w, "length must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(credentials.HintForLength(n))
}

// handleHome handles GET /home: the session gate, then the saved list.
func handleHome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	vid, ok := visitorID(w, r)
	if !ok {
		return
	}

	gate, err := orchestrators.ExecuteSessionGate(r.Context(),
		orchestrators.SessionGateInput{VisitorID: vid},
		orchestrators.SessionGateDeps{Backend: backend, Slots: stores.Handoff, Now: timeNow})
	if err != nil {
		internalError(w, err)
		return
	}
	if gate.Redirect != "" {
		redirect(w, r, gate.Redirect)
		return
	}

	view, err := projections.QueryGetDashboard(r.Context(), projections.GetDashboardQuery{VisitorID: vid},
		projections.GetDashboardDeps{Slots: stores.Handoff, Now: timeNow})
	if err != nil {
		internalError(w, err)
		return
	}
	renderTemplate(w, r, http.StatusOK, "home.html", map[string]any{
		"Title":     "My list",
		"Nav":       true,
		"Dashboard": view,
	})
}

// handleSearch handles GET /search (chip selection lives in the query
// string) and POST /search (send the built query).
func handleSearch(w http.ResponseWriter, r *http.Request) {
	vid, ok := visitorID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		view := projections.QueryGetSearchPage(projections.GetSearchPageQuery{
			Path:     r.URL.Path,
			Title:    q.Get("title"),
			Episodes: q.Get("episodes"),
			Genres:   q[query.KindGenre],
			Themes:   q[query.KindTheme],
		})
		renderTemplate(w, r, http.StatusOK, "search.html", map[string]any{
			"Title":  "Search",
			"Nav":    true,
			"Search": view,
		})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		genres := r.PostForm[query.KindGenre]
		themes := r.PostForm[query.KindTheme]
		form := query.Form{
			Title:    r.PostFormValue("title"),
			Genres:   query.Restrict(genres, query.Genres),
			Themes:   query.Restrict(themes, query.Themes),
			Episodes: r.PostFormValue("episodes"),
		}
		result, err := orchestrators.ExecuteSearch(r.Context(),
			orchestrators.SearchInput{VisitorID: vid, Form: form},
			orchestrators.SearchDeps{Backend: backend, Slots: stores.Handoff, Now: timeNow})
		if err != nil {
			internalError(w, err)
			return
		}
		if result.Redirect != "" {
			redirect(w, r, result.Redirect)
			return
		}
		view := projections.QueryGetSearchPage(projections.GetSearchPageQuery{
			Path:     r.URL.Path,
			Title:    form.Title,
			Episodes: form.Episodes,
			Genres:   genres,
			Themes:   themes,
			Error:    result.Error,
		})
		renderTemplate(w, r, http.StatusOK, "search.html", map[string]any{
			"Title":  "Search",
			"Nav":    true,
			"Search": view,
		})

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// handleResults handles GET /results
func handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	vid, ok := visitorID(w, r)
	if !ok {
		return
	}

	view, err := projections.QueryGetResults(r.Context(),
		projections.GetResultsQuery{VisitorID: vid, Saved: r.URL.Query().Get("saved")},
		projections.GetResultsDeps{Slots: stores.Handoff, Now: timeNow})
	if err != nil {
		internalError(w, err)
		return
	}
	renderTemplate(w, r, http.StatusOK, "results.html", map[string]any{
		"Title":   "Recommendations",
		"Nav":     true,
		"Results": view,
	})
}

// handleSaveAnime handles POST /results/save
func handleSaveAnime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	vid, ok := visitorID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	a := anime.Anime{
		Title:  r.PostFormValue("title"),
		Genre:  r.PostFormValue("genre"),
		URL:    r.PostFormValue("url"),
		Reason: r.PostFormValue("reason"),
	}
	result, err := orchestrators.ExecuteSaveAnime(r.Context(),
		orchestrators.SaveAnimeInput{VisitorID: vid, Anime: a},
		orchestrators.SaveAnimeDeps{Backend: backend, Slots: stores.Handoff, Now: timeNow})
	if err != nil {
		internalError(w, err)
		return
	}
	if result.Error != "" {
		renderError(w, r, http.StatusBadRequest, result.Error)
		return
	}
	redirect(w, r, result.Redirect)
}

// handleLogout handles POST /logout. Cleanup failures are logged and the
// visitor is sent to the entry page regardless.
func handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	vid, ok := visitorID(w, r)
	if !ok {
		return
	}

	result, err := orchestrators.ExecuteLogout(r.Context(),
		orchestrators.LogoutInput{VisitorID: vid},
		orchestrators.LogoutDeps{Backend: backend, Slots: stores.Handoff, Cookies: stores.Visitors})
	if err != nil {
		slog.Warn("logout_cleanup_failed", "visitor", vid, "error", err)
	}
	redirect(w, r, result.Redirect)
}

// handleHealthz handles GET /healthz
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// handleReadyz handles GET /readyz: the database and the backend must answer.
func handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok", "backend": "ok"}
	status := http.StatusOK

	probe := func(name string, ping func(context.Context) error) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := ping(ctx); err != nil {
			slog.Warn("readiness_failed", "check", name, "error", err)
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	if dbPinger != nil {
		probe("database", dbPinger.PingContext)
	}
	probe("backend", backend.Ping)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(checks)
}

// handlePerf handles GET /debug/perf?minutes=N. It does not exist in production.
func handlePerf(w http.ResponseWriter, r *http.Request) {
	if production || perfCollector == nil {
		renderError(w, r, http.StatusNotFound, "That page does not exist.")
		return
	}
	minutes := 15
	if v, err := strconv.Atoi(r.URL.Query().Get("minutes")); err == nil && v > 0 {
		minutes = v
	}
	snap := perfCollector.Snapshot(timeNow().Add(-time.Duration(minutes)*time.Minute), 10)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}
