package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lychee-technology/norma"
	"github.com/lychee-technology/norma/factory"
)

// The dump-schema command carries its own small settings registry so the
// derived schema and JSON-Schema output can be inspected without wiring a
// real application. The classes below cover the common declaration shapes:
// tagged scalars, options, nullability and an embedded settings branch.

type proxySettings struct {
	Host    string `setting:"host,label=Proxy host"`
	Port    int    `setting:"port"`
	Enabled bool   `setting:"enabled"`
}

func (p *proxySettings) ResetToDefaults() {
	p.Host = "localhost"
	p.Port = 8080
	p.Enabled = false
}

type appSettings struct {
	Name     string                        `setting:"name,label=Application name,desc=Shown in the window title"`
	Debug    bool                          `setting:"debug,group=diagnostics"`
	Timeout  time.Duration                 `setting:"timeout"`
	LogLevel string                        `setting:"log_level,group=diagnostics"`
	Retries  int                           `setting:"retries,nullable"`
	Proxy    norma.Embedded[proxySettings] `embedded:"group=network"`
}

func runDumpSchema(args []string) error {
	flags := flag.NewFlagSet("dump-schema", flag.ContinueOnError)
	flags.SetOutput(os.Stdout)
	flags.Usage = func() {
		fmt.Println("Usage: norma-tools dump-schema [-class <name>] [-format schema|jsonschema]")
		fmt.Println("")
		fmt.Println("Prints the derived schema of a class from the built-in sample")
		fmt.Println("registry, either as its raw definition or as a JSON Schema")
		fmt.Println("document. With no -class every registered class is dumped.")
		fmt.Println("")
		fmt.Println("Options:")
		flags.PrintDefaults()
	}

	class := flags.String("class", "", "settings class to dump (empty dumps all)")
	format := flags.String("format", "schema", "output format: schema or jsonschema")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *format != "schema" && *format != "jsonschema" {
		return fmt.Errorf("unknown format %q, expected schema or jsonschema", *format)
	}

	rt, err := factory.New(context.Background(), nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Manager.RegisterClass(&proxySettings{}, norma.ClassDeclaration{Name: "proxy_settings"}); err != nil {
		return err
	}
	if err := rt.Manager.RegisterClass(&appSettings{}, norma.ClassDeclaration{Name: "app_settings"}); err != nil {
		return err
	}

	classes := rt.Manager.Classes()
	if *class != "" {
		classes = []string{*class}
	}

	for _, name := range classes {
		out, err := renderSchema(rt.Manager, name, *format)
		if err != nil {
			return err
		}
		fmt.Println(out)
	}
	return nil
}

func renderSchema(manager norma.SettingsManager, class, format string) (string, error) {
	if format == "jsonschema" {
		raw, err := manager.ExportJSONSchema(class)
		if err != nil {
			return "", err
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "  "); err != nil {
			return "", err
		}
		return pretty.String(), nil
	}

	schema, err := manager.Schema(class)
	if err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(schema.Definition(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
