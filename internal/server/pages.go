package server

import "net/http"

// RegisterPages adds the HTML entry points the route gate filters. The pages
// themselves are thin shells; all data access goes through the API routes.
func RegisterPages(mux *http.ServeMux) {
	page := func(title string) http.HandlerFunc {
		body := []byte("<!doctype html><html><head><title>" + title + "</title></head><body><div id=\"root\" data-page=\"" + title + "\"></div></body></html>")
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(body)
		}
	}

	mux.HandleFunc("GET /{$}", page("home"))
	mux.HandleFunc("GET /login", page("login"))
	mux.HandleFunc("GET /signup", page("signup"))
	mux.HandleFunc("GET /dashboard", page("dashboard"))
	mux.HandleFunc("GET /dashboard/{rest...}", page("dashboard"))
}
