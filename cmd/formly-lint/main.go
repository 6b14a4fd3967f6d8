package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/goliatone/go-formly/pkg/expression"
	"github.com/goliatone/go-formly/pkg/expression/hclexpr"
	"github.com/goliatone/go-formly/pkg/fieldconfig"
)

type violation struct {
	file    string
	message string
}

func main() {
	dialect := flag.String("dialect", "expr", "expression dialect: expr or hcl")
	flag.Usage = func() {
		if _, err := fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-dialect expr|hcl] paths...\n", filepath.Base(os.Args[0])); err != nil {
			panic(err)
		}
		if _, err := fmt.Fprintf(flag.CommandLine.Output(), "\nLint field configuration documents.\n"); err != nil {
			panic(err)
		}
	}
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var compiler expression.Compiler
	switch *dialect {
	case "expr":
		compiler = expression.New()
	case "hcl":
		compiler = hclexpr.New()
	default:
		fmt.Fprintf(os.Stderr, "unknown dialect %q\n", *dialect)
		os.Exit(2)
	}

	var violations []violation
	for _, path := range paths {
		violations = append(violations, lintFile(path, compiler)...)
	}

	if len(violations) > 0 {
		sort.SliceStable(violations, func(i, j int) bool {
			if violations[i].file == violations[j].file {
				return violations[i].message < violations[j].message
			}
			return violations[i].file < violations[j].file
		})
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "%s: %s\n", v.file, v.message)
		}
		os.Exit(1)
	}
}

func lintFile(path string, compiler expression.Compiler) []violation {
	doc, err := fieldconfig.LoadFile(path, fieldconfig.WithCompiler(compiler))
	if err != nil {
		return []violation{{file: path, message: err.Error()}}
	}

	err = fieldconfig.Validate(doc.Fields, fieldconfig.WithCompiler(compiler))
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return []violation{{file: path, message: err.Error()}}
	}
	out := make([]violation, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		out = append(out, violation{file: path, message: e.Error()})
	}
	return out
}
