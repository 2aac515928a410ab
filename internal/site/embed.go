package site

import "embed"

// assets holds the page templates and the static files served at /static/.
//
//go:embed templates/*.html static/*
var assets embed.FS
