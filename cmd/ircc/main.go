package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"irc16/pkg/compiler"
	"irc16/pkg/grammar"
	"irc16/pkg/ir"
	"irc16/pkg/utils"
)

// stringList collects a repeatable string flag.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// loadGrammar extends the builtin grammar with every Starlark file in
// paths, resolved against baseDir.
func loadGrammar(baseDir string, paths []string) (*grammar.Table, error) {
	table := grammar.Builtin()
	for _, path := range paths {
		rules, err := grammar.LoadStarlark(utils.ResolveFrom(baseDir, path), nil)
		if err != nil {
			return nil, err
		}
		if err := table.Extend(rules...); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return table, nil
}

func main() {
	inPath := flag.String("in", "", "input IR file path")
	outPath := flag.String("out", "", "output assembly file path (default: input with .s extension, - for stdout)")
	configPath := flag.String("config", "", "TOML project file with default settings")
	verbose := flag.Bool("v", false, "trace grammar rewrites and dump the reduced tree")

	var cli Config
	flag.BoolVar(&cli.Comments, "comments", false, "copy // comments into the listing")
	flag.BoolVar(&cli.VarNames, "varnames", false, "annotate loads, stores and data cells with variable names")
	flag.BoolVar(&cli.AST, "ast", false, "precede each statement with its source form")
	flag.BoolVar(&cli.Preamble, "preamble", false, "emit the call .main / hlt entry trampoline")
	flag.BoolVar(&cli.PIC, "pic", false, "emit position independent jumps and calls")
	flag.IntVar(&cli.MaxRewrites, "max-rewrites", 0, "cap on grammar rewrites (0: default)")
	flag.Var((*stringList)(&cli.Grammar), "grammar", "Starlark grammar extension file, relative to the input file (repeatable)")
	flag.Parse()

	logger := log.New(os.Stderr, "ircc: ", 0)

	if *inPath == "" && flag.NArg() > 0 {
		*inPath = flag.Arg(0)
	}
	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in <file>")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("config %q: %v", *configPath, err)
	}
	cfg = cfg.merge(cli)

	fullPath, baseDir, err := utils.GetPathInfo(*inPath)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	source, err := os.ReadFile(fullPath)
	if err != nil {
		logger.Fatalf("failed to read input file %q: %v", *inPath, err)
	}

	table, err := loadGrammar(baseDir, cfg.Grammar)
	if err != nil {
		logger.Fatalf("grammar extension: %v", err)
	}

	opts := compiler.Options{
		Flags:       cfg.flags(),
		Grammar:     table,
		MaxRewrites: cfg.MaxRewrites,
		Logger:      logger,
		Filename:    *inPath,
	}
	if *verbose {
		opts.Trace = func(step int, r grammar.Rule, pos int) {
			logger.Printf("rewrite %d: %v at %d (%s)", step, r.Output, pos, r.Description)
		}
	}

	roots, err := compiler.Parse(string(source), opts)
	if err != nil {
		logger.Fatalf("%s: %v", *inPath, err)
	}
	if *verbose {
		logger.Printf("reduced tree:\n%s", ir.Format(roots))
	}

	out, err := compiler.Generate(roots, opts)
	if err != nil {
		logger.Fatalf("%s: %v", *inPath, err)
	}
	if out.Failed() {
		logger.Printf("%s: compilation failed", *inPath)
		os.Exit(1)
	}

	output := *outPath
	if output == "" {
		output = utils.ReplaceExt(*inPath, ".s")
	}
	if output == "-" {
		fmt.Print(out.Assembly)
		return
	}
	if err := os.WriteFile(output, []byte(out.Assembly), 0o644); err != nil {
		logger.Fatalf("failed to write assembly file %q: %v", output, err)
	}
}
