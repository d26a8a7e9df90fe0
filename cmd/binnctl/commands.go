package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/binn-go/application"
	"github.com/lk2023060901/binn-go/internal/codec"
	"github.com/lk2023060901/binn-go/internal/serializer"
	"github.com/lk2023060901/binn-go/pkg/binn"
	"github.com/lk2023060901/binn-go/pkg/log"
	"github.com/lk2023060901/binn-go/pkg/util/hardware"
	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

const stdinPath = "-"

type options struct {
	config   string
	format   string
	frame    bool
	compress bool
	output   string
	parallel int
	verbose  bool
}

type command struct {
	name    string
	summary string
	// ext 为批量处理时输出文件的扩展名，为空表示结果写到标准输出。
	ext     func(o *options) string
	convert func(t *tool, data []byte) ([]byte, error)
}

var commands = []command{
	{
		name:    "encode",
		summary: "Convert JSON/CBOR documents to binn",
		ext:     func(*options) string { return ".binn" },
		convert: (*tool).encode,
	},
	{
		name:    "decode",
		summary: "Convert binn documents to JSON/CBOR",
		ext:     func(o *options) string { return "." + o.format },
		convert: (*tool).decode,
	},
	{
		name:    "inspect",
		summary: "Print binn documents in diagnostic notation",
		convert: (*tool).inspect,
	},
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: binnctl <subcommand> [flags] [file...]\n\nSubcommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "\nWithout files the input is read from stdin. Run 'binnctl <subcommand> --help' for flags.\n")
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return merr.WrapErrParameterMissing("subcommand")
	}
	switch args[0] {
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			return runCommand(c, args[1:], stdin, stdout)
		}
	}
	printUsage(os.Stderr)
	return merr.WrapErrParameterInvalidMsg("unknown subcommand: %q", args[0])
}

func runCommand(c command, args []string, stdin io.Reader, stdout io.Writer) error {
	o := &options{}
	fs := pflag.NewFlagSet(c.name, pflag.ContinueOnError)
	fs.StringVarP(&o.config, "config", "c", "", "config file (yaml or json)")
	fs.StringVarP(&o.format, "format", "f", serializer.NameJSON, "text side format: json|cbor")
	fs.BoolVar(&o.frame, "frame", false, "binn side is a stream of length-prefixed frames")
	fs.BoolVar(&o.compress, "compress", false, "zstd compress frames, implies --frame")
	fs.StringVarP(&o.output, "output", "o", "", "output file, single input only")
	fs.IntVarP(&o.parallel, "parallel", "p", 0, "files processed concurrently, 0 means CPU count")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return merr.WrapErrParameterInvalidMsg("%s", err.Error())
	}

	t, err := newTool(o)
	if err != nil {
		return err
	}
	defer t.app.Close()

	inputs := fs.Args()
	if len(inputs) == 0 {
		inputs = []string{stdinPath}
	}
	if len(inputs) == 1 {
		return t.single(c, inputs[0], stdin, stdout)
	}
	if o.output != "" {
		return merr.WrapErrParameterInvalidMsg("--output needs a single input, got %d", len(inputs))
	}
	return t.batch(context.Background(), c, inputs, stdout)
}

type tool struct {
	opts     *options
	app      *application.Application
	logger   *log.MLogger
	text     serializer.Serializer
	enc      *binn.Encoder
	dec      *binn.Decoder
	pipeline codec.Codec
}

func newTool(o *options) (*tool, error) {
	switch o.format {
	case serializer.NameJSON, serializer.NameCBOR:
	default:
		return nil, merr.WrapErrParameterInvalid("json|cbor", o.format, "--format")
	}
	if o.compress {
		o.frame = true
	}

	overrides := map[string]any{}
	if o.compress {
		overrides["compression.enable"] = true
	}
	if o.verbose {
		overrides["log.level"] = "debug"
	}
	app := application.New(application.WithOverrides(overrides))
	var appArgs []string
	if o.config != "" {
		appArgs = []string{"--config", o.config}
	}
	if err := app.RunArgs(appArgs); err != nil {
		return nil, err
	}

	t := &tool{
		opts:   o,
		app:    app,
		logger: app.Logger("binnctl").With(log.FieldComponent("binnctl")),
		enc:    app.Encoder(),
		dec:    app.Decoder(),
	}
	var err error
	if t.text, err = app.Serializer(o.format); err != nil {
		app.Close()
		return nil, err
	}
	if t.pipeline, err = app.Codec(serializer.NameBinn); err != nil {
		app.Close()
		return nil, err
	}
	return t, nil
}

func (t *tool) single(c command, path string, stdin io.Reader, stdout io.Writer) error {
	data, err := readInput(path, stdin)
	if err != nil {
		return err
	}
	out, err := c.convert(t, data)
	if err != nil {
		return errors.Wrapf(err, "%s %s", c.name, path)
	}
	if t.opts.output != "" {
		return writeFile(t.opts.output, out)
	}
	if _, err := stdout.Write(out); err != nil {
		return merr.WrapErrIoFailed("stdout", err)
	}
	return nil
}

// batch 并发处理多个文件。有 ext 的命令写到同名文件，其余按输入顺序汇总到标准输出。
func (t *tool) batch(ctx context.Context, c command, paths []string, stdout io.Writer) error {
	limit := t.opts.parallel
	if limit <= 0 {
		limit = hardware.GetCPUNum()
	}
	for _, path := range paths {
		if path == stdinPath {
			return merr.WrapErrParameterInvalidMsg("stdin cannot be mixed with files")
		}
	}
	results := make([][]byte, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := readInput(path, nil)
			if err != nil {
				return err
			}
			out, err := c.convert(t, data)
			if err != nil {
				return errors.Wrapf(err, "%s %s", c.name, path)
			}
			if c.ext == nil {
				results[i] = out
				return nil
			}
			dst := outputPath(path, c.ext(t.opts))
			t.logger.Debug("converted", zap.String("src", path), zap.String("dst", dst), zap.Int("bytes", len(out)))
			return writeFile(dst, out)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if c.ext != nil {
		return nil
	}
	for i, out := range results {
		if _, err := fmt.Fprintf(stdout, "==> %s <==\n%s", paths[i], out); err != nil {
			return merr.WrapErrIoFailed("stdout", err)
		}
	}
	return nil
}

func (t *tool) encode(data []byte) ([]byte, error) {
	var v any
	if err := t.text.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrapf(err, "parse %s", t.text.Name())
	}
	if !t.opts.frame {
		return t.enc.Encode(v)
	}
	var buf bytes.Buffer
	if err := t.pipeline.Encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *tool) decode(data []byte) ([]byte, error) {
	docs, err := t.documents(data)
	if err != nil {
		return nil, err
	}
	var out []byte
	for _, d := range docs {
		b, err := t.text.Marshal(d.value)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal %s", t.text.Name())
		}
		out = append(out, b...)
		if t.text.Name() == serializer.NameJSON {
			out = append(out, '\n')
		}
	}
	return out, nil
}

func (t *tool) inspect(data []byte) ([]byte, error) {
	docs, err := t.documents(data)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	for i, d := range docs {
		s, err := binn.Diagnose(d.raw)
		if err != nil {
			return nil, err
		}
		if t.opts.frame {
			fmt.Fprintf(&sb, "#%d flags=0x%02x size=%d ", i, d.flags, len(d.raw))
		}
		sb.WriteString(s)
		sb.WriteByte('\n')
	}
	return []byte(sb.String()), nil
}

type document struct {
	raw   []byte
	flags uint8
	value any
}

// documents 拆分输入中的全部文档：帧模式逐帧读取，否则按顺序解码首尾相接的文档。
func (t *tool) documents(data []byte) ([]document, error) {
	var docs []document
	if t.opts.frame {
		r := bytes.NewReader(data)
		for {
			flags, raw, err := t.pipeline.DecodeRaw(r)
			if errors.Is(err, io.EOF) {
				return docs, nil
			}
			if err != nil {
				return nil, err
			}
			v, err := t.dec.Decode(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "frame #%d", len(docs))
			}
			docs = append(docs, document{raw: raw, flags: flags, value: v})
		}
	}

	rest := data
	for {
		v, next, err := t.dec.DecodeFirst(rest)
		if err != nil {
			return nil, errors.Wrapf(err, "document #%d", len(docs))
		}
		docs = append(docs, document{raw: rest[:len(rest)-len(next)], value: v})
		if len(next) == 0 {
			return docs, nil
		}
		rest = next
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == stdinPath {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, merr.WrapErrIoFailed("stdin", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, merr.WrapErrIoFailed(path, err)
	}
	return data, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return merr.WrapErrIoFailed(path, err)
	}
	return nil
}

func outputPath(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
