// Geminizip serves static documents over the Gemini protocol from a zip
// archive concatenated onto its own executable:
//
//	go build ./cmd/geminizip
//	(cd site && zip -rq ../site.zip .)
//	cat site.zip >>geminizip
//	./geminizip cert.pem key.pem
//
// The certificate and key may live in the same PEM file, in which case the
// key argument can be omitted.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/geminizip/geminizip/internal/server"
	"github.com/geminizip/geminizip/internal/zipfile"
)

// inheritedListenerEnv marks a re-exec'd background process; the bound
// listener arrives as file descriptor 3.
const inheritedListenerEnv = "GEMINIZIP_INHERIT_LISTENER"

type config struct {
	addr     string
	zipPath  string
	index    string
	maxConns int
	daemon   bool
	quiet    bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.addr, "addr", "[::]:1965", "address to listen on")
	flag.StringVar(&cfg.zipPath, "zip", "", "zip file to serve files from; defaults to the running executable")
	flag.StringVar(&cfg.index, "index", server.DefaultIndexDocument, "document served for directory requests")
	flag.IntVar(&cfg.maxConns, "maxconns", server.DefaultMaxConns, "maximum concurrent connections")
	flag.BoolVar(&cfg.daemon, "daemon", false, "detach into the background after startup")
	flag.BoolVar(&cfg.quiet, "quiet", false, "log errors only")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: geminizip [flags] cert.pem [key.pem]")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 && len(args) != 2 {
		flag.Usage()
		os.Exit(2)
	}
	certPath := args[0]
	keyPath := certPath
	if len(args) == 2 {
		keyPath = args[1]
	}

	// Everything that can fail fatally happens before any detach, so
	// startup errors always reach stderr with a non-zero exit.
	identity, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		fatalf("load tls identity: %v", err)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{identity},
		MinVersion:   tls.VersionTLS12,
	}

	zipPath := cfg.zipPath
	if zipPath == "" {
		if zipPath, err = os.Executable(); err != nil {
			fatalf("locate own executable: %v", err)
		}
	}
	archive, err := zipfile.OpenArchive(zipPath)
	if err != nil {
		fatalf("index archive %s: %v", zipPath, err)
	}

	ln, inherited, err := listen(cfg.addr)
	if err != nil {
		fatalf("listen on %s: %v", cfg.addr, err)
	}

	level := slog.LevelDebug
	if cfg.quiet {
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if cfg.daemon && !inherited {
		if err := detach(ln); err != nil {
			fatalf("detach: %v", err)
		}
		return
	}

	logger.Info("listening", "addr", ln.Addr().String(), "zip", zipPath, "entries", archive.Len())

	srv := server.New(archive, tlsConfig,
		server.WithLogger(logger),
		server.WithIndexDocument(cfg.index),
		server.WithMaxConns(int64(cfg.maxConns)),
	)
	if err := srv.Serve(context.Background(), ln); err != nil {
		fatalf("serve: %v", err)
	}
}

// listen binds the address, or adopts the listener inherited from the
// foreground parent when running as the re-exec'd background process.
func listen(addr string) (net.Listener, bool, error) {
	if ln, ok, err := inheritedListener(); ok || err != nil {
		return ln, ok, err
	}
	ln, err := net.Listen("tcp", addr)
	return ln, false, err
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "geminizip: "+format+"\n", args...)
	os.Exit(1)
}
