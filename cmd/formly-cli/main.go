package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/goliatone/go-formly/pkg/expression"
	"github.com/goliatone/go-formly/pkg/expression/hclexpr"
	"github.com/goliatone/go-formly/pkg/fieldconfig"
	"github.com/goliatone/go-formly/pkg/form"
	"github.com/goliatone/go-formly/pkg/renderers/tui"
)

type assignments []string

func (a *assignments) String() string { return strings.Join(*a, ",") }

func (a *assignments) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	*a = append(*a, v)
	return nil
}

func main() {
	configPath := flag.String("config", "", "field configuration document (JSON or YAML)")
	openapiPath := flag.String("openapi", "", "OpenAPI document to derive fields from")
	schema := flag.String("schema", "", "component schema name used with -openapi")
	modelPath := flag.String("model", "", "JSON file with the initial model")
	interactive := flag.Bool("interactive", false, "prompt for every visible field")
	tree := flag.Bool("tree", false, "print the field tree to stderr")
	dialect := flag.String("dialect", "expr", "expression dialect: expr or hcl")
	format := flag.String("format", "json", "output format: json, pretty or form")
	logLevel := flag.String("log-level", "warn", "log level")
	var sets assignments
	flag.Var(&sets, "set", "assign key=value through the field's control (repeatable)")
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "formly-cli",
		Level:  hclog.LevelFromString(*logLevel),
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var compiler expression.Compiler
	switch *dialect {
	case "expr":
		compiler = expression.New()
	case "hcl":
		compiler = hclexpr.New()
	default:
		log.Fatalf("unknown dialect %q", *dialect)
	}

	doc, err := loadDocument(ctx, *configPath, *openapiPath, *schema, compiler)
	if err != nil {
		log.Fatalf("Failed to load fields: %v", err)
	}
	if err := fieldconfig.Validate(doc.Fields, fieldconfig.WithCompiler(compiler)); err != nil {
		log.Fatalf("Invalid field configuration: %v", err)
	}
	if *modelPath != "" {
		if doc.Model, err = readModel(*modelPath); err != nil {
			log.Fatalf("Failed to read model: %v", err)
		}
	}
	if doc.Model == nil {
		doc.Model = form.Model{}
	}

	opts := []form.Option{form.WithLogger(logger), form.WithCompiler(compiler)}
	if doc.FormState != nil {
		opts = append(opts, form.WithFormState(doc.FormState))
	}
	f, err := form.Build(doc.Fields, doc.Model, opts...)
	if err != nil {
		log.Fatalf("Failed to build form: %v", err)
	}
	defer f.Destroy()

	if err := applyAssignments(ctx, f, sets); err != nil {
		log.Fatalf("Failed to apply -set: %v", err)
	}

	renderer, err := tui.New(
		tui.WithOutputFormat(tui.OutputFormat(*format)),
		tui.WithLogger(logger.Named("tui")),
		tui.WithTheme(tui.Theme{ErrorPrefix: "! "}),
	)
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}

	var out []byte
	if *interactive {
		out, err = renderer.Render(ctx, f)
	} else {
		var model form.Model
		if model, err = f.ModelSnapshot(); err == nil {
			out, err = renderer.Serialize(model)
		}
	}
	if err != nil {
		log.Fatalf("Failed to render: %v", err)
	}

	if *tree {
		fmt.Fprintln(os.Stderr, f.Tree())
	}
	fmt.Println(string(out))
}

func loadDocument(ctx context.Context, configPath, openapiPath, schema string, compiler expression.Compiler) (fieldconfig.Document, error) {
	switch {
	case configPath != "" && openapiPath != "":
		return fieldconfig.Document{}, fmt.Errorf("-config and -openapi are mutually exclusive")
	case configPath != "":
		return fieldconfig.LoadFile(configPath, fieldconfig.WithCompiler(compiler))
	case openapiPath != "":
		if schema == "" {
			return fieldconfig.Document{}, fmt.Errorf("-schema is required with -openapi")
		}
		fields, err := fieldconfig.FromOpenAPI(ctx, openapiPath, schema)
		if err != nil {
			return fieldconfig.Document{}, err
		}
		return fieldconfig.Document{Source: openapiPath, Fields: fields}, nil
	default:
		return fieldconfig.Document{}, fmt.Errorf("one of -config or -openapi is required")
	}
}

func readModel(path string) (form.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var model form.Model
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return model, nil
}

func applyAssignments(ctx context.Context, f *form.Form, sets assignments) error {
	if len(sets) == 0 {
		return nil
	}
	fields := make(map[string]*form.Field)
	collectKeyed(f.Root(), "", fields)
	for _, assignment := range sets {
		key, raw, _ := strings.Cut(assignment, "=")
		field, ok := fields[key]
		if !ok {
			return fmt.Errorf("no field with key %q", key)
		}
		var value any = raw
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		if err := f.SetControlValue(field, value); err != nil {
			return err
		}
	}
	return f.Settle(ctx)
}

func collectKeyed(n *form.Field, prefix string, out map[string]*form.Field) {
	for _, child := range n.FieldGroup() {
		path := prefix
		if key := child.Key(); key != "" {
			if path != "" {
				path += "."
			}
			path += key
		}
		if len(child.FieldGroup()) == 0 && child.Key() != "" {
			if _, exists := out[path]; !exists {
				out[path] = child
			}
			continue
		}
		collectKeyed(child, path, out)
	}
}
