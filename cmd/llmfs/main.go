// Command llmfs mounts the LLM-interaction virtual filesystem.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"

	"llmfs/config"
	"llmfs/llmapi"
	"llmfs/searchapi"
	"llmfs/session"
	"llmfs/vfs"
)

func main() {
	mountpoint := flag.String("mountpoint", "", "directory to mount the filesystem at (required)")
	debug := flag.Bool("debug", false, "enable debug output")
	configPath := flag.String("config", "", "path to mount-time configuration TOML (default: none)")
	coalesce := flag.Bool("coalesce", true, "collapse concurrent identical stateless queries into one upstream call")
	diagAddr := flag.String("diag-addr", "", "address for diag HTTP server (default: disabled)")
	flag.Parse()

	if *mountpoint == "" {
		fmt.Printf("Usage: %s --mountpoint PATH [options]\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	configStore := config.NewStore()
	if *configPath != "" {
		mc, err := config.LoadMountConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		mc.ApplyTo(configStore)
	} else {
		log.Printf("No --config given; mounting with empty configuration")
	}

	// A missing backend is not a mount error: the filesystem still
	// mounts and the affected subtree surfaces I/O errors on use.
	if configStore.BaseURL == "" {
		log.Printf("No base_url configured; LLM queries will fail until one is set")
	}
	var llm llmapi.Client = llmapi.NewHTTPClient(configStore.BaseURL, configStore.APIKey)
	if *coalesce {
		llm = llmapi.NewCoalescingClient(llm)
	}

	var search searchapi.Client = searchapi.Disconnected{}
	if configStore.SearchEndpoint != "" {
		zc, err := searchapi.NewZMQClient(context.Background(), configStore.SearchEndpoint)
		if err != nil {
			log.Fatalf("Failed to connect to search backend: %v", err)
		}
		defer zc.Close()
		search = zc
	} else {
		log.Printf("No semantic_search.service_url configured; /semantic_search will fail on use")
	}

	sessionStore := session.NewStore()

	llmfsRoot := vfs.NewFS(configStore, sessionStore, llm, search)

	opts := &fs.Options{}
	opts.Debug = *debug
	entryTimeout := time.Duration(0)
	attrTimeout := time.Duration(0)
	negativeTimeout := time.Duration(0)
	opts.EntryTimeout = &entryTimeout
	opts.AttrTimeout = &attrTimeout
	opts.NegativeTimeout = &negativeTimeout

	fssrv, err := fs.Mount(*mountpoint, llmfsRoot, opts)
	if err != nil {
		log.Fatalf("Mount failed: %v", err)
	}

	if *diagAddr != "" {
		diagListener, err := net.Listen("tcp", *diagAddr)
		if err != nil {
			log.Fatalf("Failed to listen for diag server on %s: %v", *diagAddr, err)
		}
		diagMux := http.NewServeMux()
		diagMux.Handle("/diag", llmfsRoot.Diag().Handler())
		diagSrv := &http.Server{Handler: diagMux}
		go diagSrv.Serve(diagListener)
		fmt.Fprintf(os.Stderr, "DIAG=http://%s/diag\n", diagListener.Addr().String())
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		fssrv.Unmount()
	}()

	fssrv.Wait()
}
