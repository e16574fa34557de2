package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dgallion1/docforge/internal/assembler"
	"github.com/dgallion1/docforge/internal/config"
	"github.com/dgallion1/docforge/internal/render"
	"github.com/dgallion1/docforge/internal/tables"
)

// errUsage marks a bad command line; run exits with status 2 for it.
var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	var font []byte
	if cfg.OverlayFontPath != "" {
		if font, err = os.ReadFile(cfg.OverlayFontPath); err != nil {
			fmt.Fprintf(stderr, "Error: overlay font: %v\n", err)
			return 1
		}
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	svc := render.New(log, render.Options{
		MaxConcurrent: 1,
		Assembler: assembler.Options{
			NumberFormat: cfg.NumberFormat,
			NoDataLabel:  cfg.NoDataLabel,
		},
		OverlayFont: font,
	})

	ctx := context.Background()
	switch args[0] {
	case "render":
		err = renderCmd(ctx, svc, args[1:], stdout)
	case "pdf":
		err = pdfCmd(ctx, svc, args[1:], stdout)
	case "inspect":
		err = inspectCmd(ctx, svc, args[1:], stdout)
	case "-h", "-help", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n", args[0])
		printUsage(stderr)
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", errUsage, err)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: docforge <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  render   -template t.docx -input in.json [-table 0:1:rows.csv]... -out out.docx")
	fmt.Fprintln(w, "  pdf      -template t.pdf -input in.json -out out.pdf")
	fmt.Fprintln(w, "  inspect  file.docx|file.pdf")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Results are printed as JSON on stdout.")
}

// tableFlag collects repeated -table index:modelRow:file.csv values.
type tableFlag []tableSource

type tableSource struct {
	TableIndex    int
	ModelRowIndex int
	Path          string
}

func (f *tableFlag) String() string {
	parts := make([]string, len(*f))
	for i, s := range *f {
		parts[i] = fmt.Sprintf("%d:%d:%s", s.TableIndex, s.ModelRowIndex, s.Path)
	}
	return strings.Join(parts, ",")
}

func (f *tableFlag) Set(v string) error {
	src, err := parseTableSource(v)
	if err != nil {
		return err
	}
	*f = append(*f, src)
	return nil
}

func parseTableSource(v string) (tableSource, error) {
	parts := strings.SplitN(v, ":", 3)
	if len(parts) != 3 || parts[2] == "" {
		return tableSource{}, fmt.Errorf("table %q: want index:modelRow:file.csv", v)
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil || idx < 0 {
		return tableSource{}, fmt.Errorf("table %q: bad table index", v)
	}
	row, err := strconv.Atoi(parts[1])
	if err != nil || row < 0 {
		return tableSource{}, fmt.Errorf("table %q: bad model row index", v)
	}
	return tableSource{TableIndex: idx, ModelRowIndex: row, Path: parts[2]}, nil
}

// applyTables loads CSV data into in.DynamicTables, filling an existing
// config for the same table or appending a new one.
func applyTables(in *assembler.GenerationInput, sources []tableSource, header bool) error {
	for _, src := range sources {
		f, err := os.Open(src.Path)
		if err != nil {
			return err
		}
		data, err := tables.ReadCSV(f, header)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", src.Path, err)
		}
		found := false
		for i := range in.DynamicTables {
			if in.DynamicTables[i].TableIndex == src.TableIndex {
				in.DynamicTables[i].ModelRowIndex = src.ModelRowIndex
				in.DynamicTables[i].Data = data
				found = true
			}
		}
		if !found {
			in.DynamicTables = append(in.DynamicTables, tables.Config{
				TableIndex:    src.TableIndex,
				ModelRowIndex: src.ModelRowIndex,
				Data:          data,
			})
		}
	}
	return nil
}

func renderCmd(ctx context.Context, svc *render.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	templatePath := fs.String("template", "", "DOCX template")
	inputPath := fs.String("input", "", "GenerationInput JSON (template field optional)")
	outPath := fs.String("out", "", "Output DOCX path")
	csvHeader := fs.Bool("csv-header", false, "Drop the first CSV record of every -table file")
	var tbls tableFlag
	fs.Var(&tbls, "table", "Table data as index:modelRow:file.csv (repeatable)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *templatePath == "" || *outPath == "" {
		return fmt.Errorf("%w: render needs -template and -out", errUsage)
	}

	var in assembler.GenerationInput
	if *inputPath != "" {
		if err := readJSON(*inputPath, &in); err != nil {
			return err
		}
	}
	tmpl, err := os.ReadFile(*templatePath)
	if err != nil {
		return err
	}
	in.Template = tmpl
	if err := applyTables(&in, tbls, *csvHeader); err != nil {
		return err
	}

	res, err := svc.RenderDocx(ctx, in)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outPath, res.Document, 0o644); err != nil {
		return err
	}
	return printJSON(stdout, res)
}

func pdfCmd(ctx context.Context, svc *render.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("pdf", flag.ContinueOnError)
	templatePath := fs.String("template", "", "PDF template")
	inputPath := fs.String("input", "", "JSON with field_values, placements and flatten")
	outPath := fs.String("out", "", "Output PDF path")
	flatten := fs.Bool("flatten", false, "Flatten filled form fields")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *templatePath == "" || *outPath == "" {
		return fmt.Errorf("%w: pdf needs -template and -out", errUsage)
	}

	var in render.PDFInput
	if *inputPath != "" {
		if err := readJSON(*inputPath, &in); err != nil {
			return err
		}
	}
	tmpl, err := os.ReadFile(*templatePath)
	if err != nil {
		return err
	}
	in.Template = tmpl
	in.Flatten = in.Flatten || *flatten

	res, err := svc.RenderPDF(ctx, in)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outPath, res.PDF, 0o644); err != nil {
		return err
	}
	return printJSON(stdout, res)
}

func inspectCmd(ctx context.Context, svc *render.Service, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: inspect takes exactly one file", errUsage)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	switch render.Sniff(data) {
	case render.FormatDOCX:
		out, err := svc.InspectDocx(ctx, data)
		if err != nil {
			return err
		}
		return printJSON(stdout, out)
	case render.FormatPDF:
		det, err := svc.InspectPDF(ctx, data)
		if err != nil {
			return err
		}
		return printJSON(stdout, det)
	}
	return fmt.Errorf("%s: %w", args[0], render.ErrUnsupportedFormat)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
