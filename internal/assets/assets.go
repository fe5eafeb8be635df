// Package assets embeds the browser script and stylesheet for the
// tutorial pages.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed client/*
var clientFS embed.FS

// Asset file names under ClientFS.
const (
	ScriptFile = "tutor.js"
	StyleFile  = "tutor.css"
)

// ClientFS returns the embedded client files
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetClientJS returns the browser script
func GetClientJS() ([]byte, error) {
	return clientFS.ReadFile("client/" + ScriptFile)
}

// GetClientCSS returns the stylesheet
func GetClientCSS() ([]byte, error) {
	return clientFS.ReadFile("client/" + StyleFile)
}
