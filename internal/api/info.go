package api

import "net/http"

// accountDeletionPage is the public page app stores require, explaining how
// to delete an account and what data goes with it.
const accountDeletionPage = `<!DOCTYPE html>
<html>
<head><title>Account Deletion - Ping for Gitlab</title></head>
<body>
<h1>Delete your Ping for Gitlab account</h1>
<p>Open the app, go to Settings and tap "Delete account". This immediately
and permanently deletes your account, your hook address and every stored
notification. Nothing is retained.</p>
<p>Alternatively, send a DELETE request to /user with your access token.</p>
</body>
</html>`

// AccountDeletionInfo handles GET /account-deletion-info.
func (h *Handler) AccountDeletionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(accountDeletionPage))
}
