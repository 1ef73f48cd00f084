package web

import "embed"

// StaticFiles embeds web/static (styles, dashboard scripts, icons) into the
// binary.
//
//go:embed static/*
var StaticFiles embed.FS
