// Command tlsdump decodes and encodes TLS-style binary messages described by
// a TOML schema.
//
//	tlsdump -schema hello.toml -format hex -in hello.hex decode
//	tlsdump -schema hello.toml -in hello.yaml -out hex encode
//	tlsdump -config tlsdump.toml -zstd -in capture.bin.zst check
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/oy3o/tlscodec/internal/logging"
	"github.com/oy3o/tlscodec/schema"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, logging.ConfigureRuntime()); err != nil {
		fmt.Fprintf(os.Stderr, "tlsdump: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer, log zerolog.Logger) error {
	fs := flag.NewFlagSet("tlsdump", flag.ContinueOnError)
	configPath := fs.String("config", "", "TOML config file supplying defaults")
	schemaPath := fs.String("schema", "", "TOML schema file")
	typeName := fs.String("type", "", "type to code (default: the schema root)")
	in := fs.String("in", "", "input file (default: stdin)")
	format := fs.String("format", "", "wire input encoding: bin or hex")
	out := fs.String("out", "", "output: yaml, json, hex or bin")
	useZstd := fs.Bool("zstd", false, "input is zstd-compressed")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: tlsdump [flags] decode|encode|check\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one command")
	}

	opts := defaultOptions()
	if *configPath != "" {
		if err := loadConfig(*configPath, &opts); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "schema":
			opts.Schema = *schemaPath
		case "type":
			opts.Type = *typeName
		case "in":
			opts.In = *in
		case "format":
			opts.Format = *format
		case "out":
			opts.Out = *out
		case "zstd":
			opts.Zstd = *useZstd
		}
	})
	if err := opts.validate(); err != nil {
		return err
	}

	sch, err := schema.Load(opts.Schema)
	if err != nil {
		return err
	}
	input, err := readInput(opts, stdin)
	if err != nil {
		return err
	}
	log.Debug().Str("schema", opts.Schema).Str("type", opts.Type).Int("input_len", len(input)).Msg("input loaded")

	switch cmd := fs.Arg(0); cmd {
	case "decode":
		wire, err := wireBytes(opts, input)
		if err != nil {
			return err
		}
		v, err := sch.Decode(opts.Type, wire)
		if err != nil {
			return err
		}
		log.Info().Str("type", opts.Type).Int("bytes", len(wire)).Msg("decoded")
		return render(stdout, opts.Out, v)
	case "encode":
		var plain any
		if err := yaml.Unmarshal(input, &plain); err != nil {
			return fmt.Errorf("parse value: %w", err)
		}
		v, err := sch.FromPlain(opts.Type, plain)
		if err != nil {
			return err
		}
		wire, err := sch.Encode(opts.Type, v)
		if err != nil {
			return err
		}
		log.Info().Str("type", opts.Type).Int("bytes", len(wire)).Msg("encoded")
		return writeWire(stdout, opts.Out, wire)
	case "check":
		wire, err := wireBytes(opts, input)
		if err != nil {
			return err
		}
		v, err := sch.Decode(opts.Type, wire)
		if err != nil {
			return err
		}
		again, err := sch.Encode(opts.Type, v)
		if err != nil {
			return fmt.Errorf("re-encode: %w", err)
		}
		if !bytes.Equal(wire, again) {
			return fmt.Errorf("re-encoding differs: %d bytes in, %d bytes out", len(wire), len(again))
		}
		log.Info().Int("bytes", len(wire)).Msg("round trip ok")
		_, err = fmt.Fprintf(stdout, "ok %d bytes\n", len(wire))
		return err
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// readInput reads the whole input, decompressing it when asked, and
// refuses anything larger than opts.MaxInput.
func readInput(opts options, stdin io.Reader) ([]byte, error) {
	src := stdin
	if opts.In != "" && opts.In != "-" {
		f, err := os.Open(opts.In)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		src = f
	}
	if opts.Zstd {
		dec, err := zstd.NewReader(src, zstd.WithDecoderMaxMemory(uint64(opts.MaxInput)))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		src = dec
	}
	data, err := io.ReadAll(io.LimitReader(src, opts.MaxInput+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > opts.MaxInput {
		return nil, fmt.Errorf("input exceeds max_input of %d bytes", opts.MaxInput)
	}
	return data, nil
}

func wireBytes(opts options, input []byte) ([]byte, error) {
	if opts.Format != "hex" {
		return input, nil
	}
	var h schema.Hex
	if err := h.UnmarshalText(input); err != nil {
		return nil, fmt.Errorf("parse hex input: %w", err)
	}
	return h, nil
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("decode renders yaml or json, not %q", format)
}

func writeWire(w io.Writer, format string, wire []byte) error {
	if format == "bin" {
		_, err := w.Write(wire)
		return err
	}
	_, err := fmt.Fprintf(w, "%s\n", schema.Hex(wire))
	return err
}
