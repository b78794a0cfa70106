// Package api holds the OpenAPI description of the HTTP interface.
package api

import _ "embed"

// OpenAPI is the raw api/openapi.yaml document.
//
//go:embed openapi.yaml
var OpenAPI []byte
