// (c) Copyright 2021 Hewlett Packard Enterprise Development LP

package util

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/hpe-storage/dbrefresh/logger"
)

// Route struct
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

// InitializeRouter initializes all handlers
func InitializeRouter(router *mux.Router, routes []Route) (err error) {
	for _, route := range routes {
		var handler http.Handler
		handler = route.HandlerFunc
		handler = log.HTTPLogger(handler, route.Name)

		router.
			Methods(route.Method).
			Path(route.Pattern).
			Name(route.Name).
			Handler(handler)
	}
	return nil
}
