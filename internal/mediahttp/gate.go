package mediahttp

import (
	"encoding/json"
	"net/http"

	"github.com/RagingGuard/simple-video-share/internal/cryptoutil"
	"github.com/RagingGuard/simple-video-share/internal/tokengate"
)

// VerifyRequest is the /gate/verify request body.
type VerifyRequest struct {
	Password string `json:"password"`
}

// VerifyResponse is the /gate/verify response body. Token is set only
// when Ok is true.
type VerifyResponse struct {
	Ok    bool   `json:"ok"`
	Token string `json:"token,omitempty"`
}

// HandleGateVerify checks the gate credential and mints a single-use
// token on success. Wrong credentials get the same shape with ok=false
// and the same status, so the response reveals nothing beyond the
// boolean the client needs.
func (api *API) HandleGateVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.writeJSON(ctx, w, http.StatusBadRequest, VerifyResponse{Ok: false})
		return
	}

	if api.gateSecret == "" || !cryptoutil.SecretEqual(req.Password, api.gateSecret) {
		api.metrics.IncGateVerify("denied")
		api.logger.Info(ctx, "gate credential rejected")
		api.writeJSON(ctx, w, http.StatusOK, VerifyResponse{Ok: false})
		return
	}

	token := api.gate.Mint()
	api.metrics.IncGateVerify("ok")
	api.metrics.IncTokenMinted()
	api.logger.Info(ctx, "gate credential accepted, token minted", "ttl", api.gate.TTL().String())
	api.writeJSON(ctx, w, http.StatusOK, VerifyResponse{Ok: true, Token: token})
}

// HandleSecretLanding redeems a token for entry into the restricted
// view. This is the one place a token is consumed; catalog and media
// requests afterwards only peek at it.
func (api *API) HandleSecretLanding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.URL.Query().Get("token")
	switch api.gate.ValidateAndConsume(token) {
	case tokengate.Granted:
		api.metrics.IncTokenConsumed()
		api.logger.Info(ctx, "restricted landing granted")
		api.servePlayerPage(w)

	case tokengate.RejectedAlreadyUsed:
		api.metrics.IncTokenRejected("already_used")
		api.logger.Info(ctx, "restricted landing rejected, token already used")
		http.Error(w, "this link has already been used", http.StatusForbidden)

	default:
		api.metrics.IncTokenRejected("unknown")
		api.logger.Info(ctx, "restricted landing rejected, token unknown or expired")
		http.Error(w, "invalid or expired link", http.StatusForbidden)
	}
}

// HandleGateInvalidate drops a token. The response is 204 regardless of
// whether the token existed; clients fire this as a best-effort beacon
// on page unload.
func (api *API) HandleGateInvalidate(w http.ResponseWriter, r *http.Request) {
	api.gate.Invalidate(r.URL.Query().Get("token"))
	api.metrics.IncTokenInvalidated()
	w.WriteHeader(http.StatusNoContent)
}
