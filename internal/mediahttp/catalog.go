package mediahttp

import "net/http"

// HandleCatalog lists the media files visible to the request's scope.
// The result is always a JSON array, empty when the root is missing or
// holds nothing playable.
func (api *API) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	root, scope := api.scopeRoot(r)

	entries, err := root.List()
	if err != nil {
		api.logger.Error(ctx, err, "catalog walk failed", "scope", scope.String())
		api.writeJSON(ctx, w, http.StatusInternalServerError, map[string]string{
			"error": "listing failed",
		})
		return
	}

	api.logger.Debug(ctx, "served catalog",
		"scope", scope.String(),
		"entries", len(entries),
	)
	api.writeJSON(ctx, w, http.StatusOK, entries)
}
