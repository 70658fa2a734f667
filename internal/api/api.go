package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

// Register adds the API routes to rootRouter.
func Register(rootRouter *mux.Router, context *Context) {
	addContext := func(handler contextHandlerFunc) *contextHandler {
		return newContextHandler(context, handler)
	}

	rootRouter.Handle("/transactions", addContext(handleCreateTransaction)).Methods("POST")
	rootRouter.Handle("/transactions", addContext(handleListTransactions)).Methods("GET")
	rootRouter.Handle("/transaction/{id}", addContext(handleGetTransaction)).Methods("GET")
	rootRouter.Handle("/kinds", addContext(handleListKinds)).Methods("GET")
	rootRouter.Handle("/metrics", context.Metrics.Handler()).Methods("GET")
}

func handleListKinds(c *Context, w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, c.Orchestrator.Kinds())
}

// outputJSON is a helper method to write the given data as JSON to the given writer.
//
// It only logs an error if one occurs, rather than returning, since there is no point in trying
// to send a new status code back to the client once the body has started sending.
func outputJSON(c *Context, w io.Writer, data interface{}) {
	encoder := json.NewEncoder(w)
	err := encoder.Encode(data)
	if err != nil {
		c.Logger.WithError(err).Error("failed to encode result")
	}
}
