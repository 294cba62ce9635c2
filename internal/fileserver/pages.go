package fileserver

import (
	"embed"
	"fmt"
	"net/http"
)

//go:embed pages/*.html
var pages embed.FS

// errorPage returns the embedded body for status.
func errorPage(status int) []byte {
	body, err := pages.ReadFile(fmt.Sprintf("pages/%d.html", status))
	if err != nil {
		text := fmt.Sprintf("%d %s", status, http.StatusText(status))
		return []byte("<!DOCTYPE html>\n<html><head><title>" + text + "</title></head><body><h1>" + text + "</h1></body></html>\n")
	}
	return body
}
