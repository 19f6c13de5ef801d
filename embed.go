package prdforge

import "embed"

// Prompts holds the generation prompt templates.
//
//go:embed prompts/*.md
var Prompts embed.FS
