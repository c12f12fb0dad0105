// Package web embeds the server-rendered templates and static assets for
// single-binary distribution.
package web

import "embed"

// Assets contains the HTML templates and the static files they reference.
//
//go:embed all:templates all:static
var Assets embed.FS
