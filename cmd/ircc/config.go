package main

import (
	"github.com/BurntSushi/toml"

	"irc16/pkg/compiler"
)

// Config is the project file read with -config. Command line flags add to
// it: booleans are or-ed, grammar files are appended and a non-zero
// -max-rewrites wins.
//
//	comments = true
//	preamble = true
//	grammar = ["ext/push_label.star"]
type Config struct {
	Comments    bool     `toml:"comments"`
	VarNames    bool     `toml:"varnames"`
	AST         bool     `toml:"ast"`
	Preamble    bool     `toml:"preamble"`
	PIC         bool     `toml:"pic"`
	MaxRewrites int      `toml:"max_rewrites"`
	Grammar     []string `toml:"grammar"`
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}

// merge folds the command line settings into c.
func (c Config) merge(cli Config) Config {
	c.Comments = c.Comments || cli.Comments
	c.VarNames = c.VarNames || cli.VarNames
	c.AST = c.AST || cli.AST
	c.Preamble = c.Preamble || cli.Preamble
	c.PIC = c.PIC || cli.PIC
	if cli.MaxRewrites > 0 {
		c.MaxRewrites = cli.MaxRewrites
	}
	c.Grammar = append(append([]string(nil), c.Grammar...), cli.Grammar...)
	return c
}

func (c Config) flags() compiler.Flags {
	var flags compiler.Flags
	for _, fl := range []struct {
		set  bool
		flag compiler.Flags
	}{
		{c.Comments, compiler.KeepComments},
		{c.VarNames, compiler.AddVarNames},
		{c.AST, compiler.AddAstComments},
		{c.Preamble, compiler.AddPreamble},
		{c.PIC, compiler.PositionIndependentCode},
	} {
		if fl.set {
			flags |= fl.flag
		}
	}
	return flags
}
