package mediahttp

import "net/http"

// HandleIndex serves the embedded player page. The page itself decides
// what to show from /catalog; restricted entries appear only when it
// carries a token in its URL.
func (api *API) HandleIndex(w http.ResponseWriter, r *http.Request) {
	api.servePlayerPage(w)
}

func (api *API) servePlayerPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(api.playerPage)
}
