// Package handler contains the HTTP request handlers of the snippet API.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly, we use http.HandlerFunc, a function with the right
// signature that automatically satisfies the Handler interface. Chi's router
// accepts these directly.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (path values, query, JSON body)
//  2. Call the service layer
//  3. Write the HTTP response (status code, headers, body)
//
// Handlers should NOT contain business logic. They are the glue between
// HTTP and the services; every rule (quota, categories, cascade) lives in
// internal/service.
package handler
