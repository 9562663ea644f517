package grammar

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"irc16/pkg/ir"
)

var ErrExtension = errors.New(f("invalid grammar extension"))

func kindList(fn string, name string, list *starlark.List) ([]ir.Kind, error) {
	if list == nil {
		return nil, nil
	}
	kinds := make([]ir.Kind, list.Len())
	for i := range kinds {
		s, ok := starlark.AsString(list.Index(i))
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrExtension, f("%s: %s[%v] is not a string", fn, name, i))
		}
		kind, ok := ir.ParseKind(s)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrExtension, f("%s: unknown kind %q", fn, s))
		}
		kinds[i] = kind
	}
	return kinds, nil
}

func boolList(fn string, list *starlark.List) ([]bool, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]bool, list.Len())
	for i := range out {
		b, ok := list.Index(i).(starlark.Bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrExtension, f("%s: invert[%v] is not a bool", fn, i))
		}
		out[i] = bool(b)
	}
	return out, nil
}

func dispositionList(fn string, list *starlark.List) ([]Disposition, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]Disposition, list.Len())
	for i := range out {
		s, ok := starlark.AsString(list.Index(i))
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrExtension, f("%s: dispositions[%v] is not a string", fn, i))
		}
		d, ok := ParseDisposition(s)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrExtension, f("%s: unknown disposition %q", fn, s))
		}
		out[i] = d
	}
	return out, nil
}

// LoadStarlark runs a grammar extension script and returns the rules it
// declares, in call order. The script declares rules with
//
//	rule(context=["IDENTIFIER", "ASSIGN"], output="VarRef", priority=210,
//	     description="...", invert=[False, True], dispositions=["replace", "keep"])
//
// src follows starlark.ExecFile: nil reads filename, otherwise a string,
// []byte or io.Reader.
func LoadStarlark(filename string, src any) ([]Rule, error) {
	var rules []Rule

	ruleFn := func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var (
			context, invert, dispositions *starlark.List
			output, description           string
			priority                      int
		)
		err := starlark.UnpackArgs(b.Name(), args, kwargs,
			"context", &context,
			"output", &output,
			"priority", &priority,
			"description?", &description,
			"invert?", &invert,
			"dispositions?", &dispositions,
		)
		if err != nil {
			return nil, err
		}

		var r Rule
		if r.Context, err = kindList(b.Name(), "context", context); err != nil {
			return nil, err
		}
		if r.Invert, err = boolList(b.Name(), invert); err != nil {
			return nil, err
		}
		if r.Dispositions, err = dispositionList(b.Name(), dispositions); err != nil {
			return nil, err
		}
		kind, ok := ir.ParseKind(output)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrExtension, f("%s: unknown kind %q", b.Name(), output))
		}
		r.Output = kind
		r.Priority = priority
		r.Description = description

		r = r.normalize()
		if err := r.validate(); err != nil {
			return nil, err
		}
		rules = append(rules, r)
		return starlark.None, nil
	}

	thread := starlark.Thread{Name: filename}
	opts := syntax.FileOptions{TopLevelControl: true}
	predeclared := starlark.StringDict{
		"rule": starlark.NewBuiltin("rule", ruleFn),
	}
	if _, err := starlark.ExecFileOptions(&opts, &thread, filename, src, predeclared); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return rules, nil
}
