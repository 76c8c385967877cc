package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"
)

// Server wraps up the request routers that expose the built
// repository and build status over the network.
type Server struct {
	l hclog.Logger
	r chi.Router

	n *http.Server
}
