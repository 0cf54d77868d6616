// Package web embeds the browser front end served at "/".
package web

import _ "embed"

// Index holds the single-page wizard UI served at the root route.
//
//go:embed index.html
var Index []byte
