// Package http implements the HTTP handlers of the tabviz web service.
// Handlers are a thin layer between the chi router and the services: they
// parse and validate requests, call one service method, and format the
// response.
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Session Store
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Responses
//
// JSON endpoints answer with a success envelope:
//
//	{"status": "success", "data": {...}}
//
// POST /api/charts answers with the PNG bytes and Content-Type image/png.
// GET /api/dataset/export streams CSV as an attachment.
//
// # Error Handling
//
// Service errors are translated to API errors and rendered as RFC 7807
// Problem Details by the shared ErrorHandler:
//
//	{
//	    "type": "/errors/dataset/not-loaded",
//	    "title": "Conflict",
//	    "status": 409,
//	    "detail": "no dataset loaded",
//	    "instance": "/api/charts",
//	    "error_code": "NO_DATASET"
//	}
//
// Every endpoint that needs a dataset answers 409 until one is loaded.
// Chart validation failures answer 400 with the offending field in details.
//
// # Testing
//
// Handlers are tested with httptest against testify mocks of the service
// interfaces declared in service_interfaces.go.
package http
