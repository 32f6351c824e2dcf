// Package mimetype maps file extensions to MIME types for response meta
// lines. The table is static; no platform MIME database is consulted.
package mimetype

import "strings"

// Default is returned for paths with no extension or an unknown one.
const Default = "application/octet-stream"

var byExtension = map[string]string{
	"c":        "text/x-c",
	"cc":       "text/x-c",
	"cpp":      "text/x-c",
	"cxx":      "text/x-c",
	"h":        "text/x-c",
	"hh":       "text/x-c",
	"hpp":      "text/x-c",
	"hxx":      "text/x-c",
	"rs":       "text/x-c",
	"css":      "text/css",
	"csv":      "text/csv",
	"diff":     "text/x-diff",
	"gif":      "image/gif",
	"gmi":      "text/gemini",
	"gemini":   "text/gemini",
	"go":       "text/x-go",
	"gpub":     "application/gpub+zip",
	"html":     "text/html",
	"htm":      "text/html",
	"jpeg":     "image/jpeg",
	"jpg":      "image/jpeg",
	"js":       "text/javascript",
	"mjs":      "text/javascript",
	"json":     "application/json",
	"m3u":      "audio/x-mpegurl",
	"md":       "text/markdown",
	"mdwn":     "text/markdown",
	"markdown": "text/markdown",
	"mp3":      "audio/mpeg",
	"mp4":      "video/mp4",
	"ogg":      "application/ogg",
	"patch":    "text/x-patch",
	"pdf":      "application/pdf",
	"png":      "image/png",
	"py":       "text/x-script.python",
	"sh":       "text/x-shellscript",
	"svg":      "image/svg+xml",
	"torrent":  "application/x-bittorrent",
	"tsv":      "text/tab-separated-values",
	"txt":      "text/plain",
	"asc":      "text/plain",
	"conf":     "text/plain",
	"el":       "text/plain",
	"log":      "text/plain",
	"lua":      "text/plain",
	"nix":      "text/plain",
	"org":      "text/plain",
	"pm":       "text/plain",
	"tal":      "text/plain",
	"text":     "text/plain",
	"toml":     "text/plain",
	"vf":       "text/plain",
	"yml":      "text/plain",
	"yaml":     "text/plain",
	"vcf":      "text/vcard",
	"vcard":    "text/vcard",
	"wasm":     "application/wasm",
	"wav":      "audio/x-wav",
	"webm":     "video/webm",
	"webp":     "image/webp",
	"xml":      "text/xml",
	"xsl":      "text/xml",
	"zip":      "application/zip",
	"zst":      "application/zstd",
	"zstd":     "application/zstd",
}

// Resolve returns the MIME type for the extension of the final segment of
// path. Lookup is case-insensitive; unknown and missing extensions resolve
// to Default.
func Resolve(path string) string {
	base := path
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return Default
	}
	if t, ok := byExtension[strings.ToLower(base[i+1:])]; ok {
		return t
	}
	return Default
}
