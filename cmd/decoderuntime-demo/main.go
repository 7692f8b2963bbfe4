// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command decoderuntime-demo feeds a raw logic-sample file through a
// stack of decoder plug-ins and prints the resulting annotations,
// exercising the library the way a minimal logic-analyzer front-end
// would.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ClusterCockpit/decoderuntime/internal/dconfig"
	"github.com/ClusterCockpit/decoderuntime/internal/registry"
	"github.com/ClusterCockpit/decoderuntime/internal/runtime"
	"github.com/ClusterCockpit/decoderuntime/internal/runtimeenv"
	"github.com/ClusterCockpit/decoderuntime/pkg/rlog"
	"github.com/ClusterCockpit/decoderuntime/pkg/schema"
	"github.com/google/gops/agent"
	"github.com/google/uuid"
)

func main() {
	searchDir := flag.String("search-dir", "", "directory of decoder .go modules to load")
	decoderModule := flag.String("decoder", "", "module name (file under search-dir, without extension) to load and run as the sole root instance")
	samplesFile := flag.String("samples", "", "path to a raw little-endian logic-sample file")
	unitsize := flag.Int("unitsize", 1, "bytes per sample in the samples file")
	numChannels := flag.Int("channels", 8, "number of logic channels in the sample stream")
	samplerate := flag.Uint64("samplerate", 1_000_000, "sample rate in Hz, forwarded to decoders as metadata")
	envFile := flag.String("env-file", ".env", "optional .env file read before process environment")
	gopsEnabled := flag.Bool("gops", false, "start a github.com/google/gops/agent diagnostic endpoint")
	flag.Parse()

	cfg, err := dconfig.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decoderuntime-demo: loading config: %s\n", err)
		os.Exit(1)
	}
	if *searchDir != "" {
		cfg.SearchPaths = append(cfg.SearchPaths, *searchDir)
	}
	rlog.SetLogLevel(cfg.LogLevel)

	if *gopsEnabled {
		if err := agent.Listen(agent.Options{}); err != nil {
			rlog.Warnf("decoderuntime-demo: gops agent: %s", err)
		} else {
			defer agent.Close()
		}
	}

	if *decoderModule == "" || *samplesFile == "" {
		fmt.Fprintln(os.Stderr, "decoderuntime-demo: -decoder and -samples are required")
		flag.Usage()
		os.Exit(2)
	}

	rt := runtime.NewFromConfig(cfg, nil)

	ctx, cancel := runtimeenv.WithShutdownSignal(context.Background())
	defer cancel()
	if cfg.WatchEnabled {
		if err := rt.WatchSearchPaths(ctx, loadModuleFile); err != nil {
			rlog.Warnf("decoderuntime-demo: search-path watch: %s", err)
		}
	}

	dec, verr := loadDecoderFromSearchPath(rt.Registry, cfg.SearchPaths, *decoderModule)
	if verr != nil {
		fmt.Fprintf(os.Stderr, "decoderuntime-demo: loading %q: %s\n", *decoderModule, verr)
		os.Exit(1)
	}

	correlationID := uuid.NewString()
	rlog.Infof("decoderuntime-demo: run %s: loaded decoder %q (api v%d)", correlationID, dec.ID, dec.APIVersion)

	sess := rt.SessionNew()
	defer func() {
		runtimeenv.LogShutdown("demo run complete")
		_ = rt.SessionDestroy(sess.ID)
	}()

	sess.OnAnnotation(func(a schema.Annotation) {
		fmt.Printf("%d-%d\t%s\tclass=%d\t%v\n", a.Start, a.End, a.InstID, a.Class, a.Strings)
	})

	if verr := sess.ConfigSet("NUM_CHANNELS", uint64(*numChannels)); verr != nil {
		exitErr(verr)
	}
	if verr := sess.ConfigSet("UNITSIZE", uint64(*unitsize)); verr != nil {
		exitErr(verr)
	}
	if verr := sess.ConfigSet("SAMPLERATE", *samplerate); verr != nil {
		exitErr(verr)
	}

	in, verr := sess.NewInstance(dec.ID, "")
	if verr != nil {
		exitErr(verr)
	}
	identity := make(map[string]int, *numChannels)
	for i := 0; i < *numChannels; i++ {
		identity[fmt.Sprintf("ch%d", i)] = i
	}
	for i, c := range dec.Channels {
		if i < *numChannels {
			identity[c.ID] = i
		}
	}
	if verr := in.SetChannelMap(identity); verr != nil {
		exitErr(verr)
	}

	if verr := sess.Start(); verr != nil {
		exitErr(verr)
	}

	data, err := os.ReadFile(*samplesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decoderuntime-demo: reading %s: %s\n", *samplesFile, err)
		os.Exit(1)
	}
	if verr := sess.Send(0, data, *unitsize); verr != nil {
		exitErr(verr)
	}

	sess.TerminateReset()
}

func loadModuleFile(path string) (moduleName, source string, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	name := filepath.Base(path)
	return name[:len(name)-len(filepath.Ext(name))], string(raw), nil
}

func loadDecoderFromSearchPath(reg *registry.Registry, searchPaths []string, moduleName string) (*schema.Decoder, *schema.Error) {
	for _, dir := range searchPaths {
		path := filepath.Join(dir, moduleName+".go")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		_, source, err := loadModuleFile(path)
		if err != nil {
			return nil, schema.NewSearchPathError("reading %s: %s", path, err)
		}
		return reg.Load(moduleName, source)
	}
	return nil, schema.NewSearchPathError("module %q not found on search path", moduleName)
}

func exitErr(verr *schema.Error) {
	fmt.Fprintf(os.Stderr, "decoderuntime-demo: %s\n", verr)
	os.Exit(1)
}
