package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/nkoporec/checkmate-lsp/core"
	"github.com/nkoporec/checkmate-lsp/lsp"
	"github.com/nkoporec/checkmate-lsp/types"
	"github.com/sourcegraph/jsonrpc2"
)

const (
	name     = "checkmate-lsp"
	version  = "0.1.0"
	revision = "HEAD"
)

func loadConfig(yamlfile string, explicit bool) (*types.Config, error) {
	var config types.Config

	f, err := os.Open(yamlfile)
	if err != nil {
		// Running without the default config file is fine, the editor
		// side configuration is usually all there is.
		if !explicit && os.IsNotExist(err) {
			return &config, nil
		}
		return nil, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&config); err != nil {
		return nil, fmt.Errorf("can not read configuration: %v", err)
	}
	return &config, nil
}

func main() {
	var yamlfile string
	var logfile string
	var loglevel int
	var dump bool
	var showVersion bool

	flag.StringVar(&yamlfile, "c", "", "path to config.yaml")
	flag.StringVar(&logfile, "log", "", "logfile")
	flag.IntVar(&loglevel, "loglevel", 0, "loglevel")
	flag.BoolVar(&dump, "d", false, "dump configuration")
	flag.BoolVar(&showVersion, "v", false, "Print the version")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s %s (rev: %s/%s)\n", name, version, revision, runtime.Version())
		return
	}

	explicit := yamlfile != ""
	if !explicit {
		dir := os.Getenv("HOME")
		if dir == "" && runtime.GOOS == "windows" {
			dir = filepath.Join(os.Getenv("APPDATA"), name)
		} else {
			dir = filepath.Join(dir, ".config", name)
		}
		yamlfile = filepath.Join(dir, "config.yaml")
	}

	config, err := loadConfig(yamlfile, explicit)
	if err != nil {
		log.Fatal(err)
	}

	if dump {
		if err := yaml.NewEncoder(os.Stdout).Encode(config); err != nil {
			log.Fatal(err)
		}
		return
	}

	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(1)
	}
	log.Println(name + ": reading on stdin, writing on stdout")

	if logfile == "" {
		logfile = config.LogFile
	}
	if logfile != "" {
		f, err := os.OpenFile(logfile, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0660)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		config.LogWriter = f
	}
	if config.LogWriter == nil {
		config.LogWriter = os.Stderr
	}
	if loglevel > 0 {
		config.LogLevel = loglevel
	}

	logger := log.New(config.LogWriter, "", log.LstdFlags)
	handler := core.NewHandler(logger, config)
	rpcHandler := jsonrpc2.HandlerWithError(lsp.NewHandler(handler).Handle)

	var connOpt []jsonrpc2.ConnOpt
	<-jsonrpc2.NewConn(
		context.Background(),
		jsonrpc2.NewBufferedStream(stdrwc{}, jsonrpc2.VSCodeObjectCodec{}),
		rpcHandler, connOpt...).DisconnectNotify()
	log.Println(name + ": connections closed")
}

type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdrwc) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
