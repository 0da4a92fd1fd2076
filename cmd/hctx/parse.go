package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	herrors "github.com/hctx-dev/hctx/internal/errors"
	"github.com/hctx-dev/hctx/pkg/trigger"
)

// parsedHandler is one handler key of a parsed attribute.
type parsedHandler struct {
	Key      string          `json:"key" yaml:"key"`
	Name     string          `json:"name" yaml:"name"`
	Tag      string          `json:"tag,omitempty" yaml:"tag,omitempty"`
	Local    bool            `json:"local,omitempty" yaml:"local,omitempty"`
	Props    map[string]any  `json:"props,omitempty" yaml:"props,omitempty"`
	Triggers []parsedTrigger `json:"triggers" yaml:"triggers"`
}

type parsedTrigger struct {
	Trigger string `json:"trigger" yaml:"trigger"`
	Kind    string `json:"kind" yaml:"kind"`
	Field   string `json:"field,omitempty" yaml:"field,omitempty"`
	Action  string `json:"action,omitempty" yaml:"action,omitempty"`
	Phase   string `json:"phase,omitempty" yaml:"phase,omitempty"`
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
}

func parseCmd() *cobra.Command {
	var (
		format string
		effect bool
	)

	cmd := &cobra.Command{
		Use:   "parse <attribute>",
		Short: "Print the parsed form of an action or effect attribute",
		Long: `Parse an hc-action or hc-effect attribute value and print its
handlers and triggers in merge order.

Examples:
  hctx parse 'increment on click'
  hctx parse --format yaml 'save and close on submit; reset on a:clear@form'
  hctx parse --effect 'render on a:increment or hc:statechanged:count'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd.OutOrStdout(), args[0], format, effect)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().BoolVar(&effect, "effect", false, "Parse as an effect attribute (skips the circular trigger check)")

	return cmd
}

func runParse(w io.Writer, attr, format string, effect bool) error {
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}

	ast, err := trigger.Parse(attr)
	if err != nil {
		return herrors.New(herrors.CodeSyntax).WithAttr(attr).Wrap(err)
	}
	if !effect {
		if err := trigger.CheckCircular(ast); err != nil {
			return herrors.New(herrors.CodeCircularTrigger).WithAttr(attr).Wrap(err)
		}
	}

	out := make([]parsedHandler, 0, ast.Len())
	for _, b := range ast.Bindings() {
		h, err := trigger.ParseHandler(b.Handler)
		if err != nil {
			return herrors.New(herrors.CodeSyntax).WithAttr(attr).Wrap(err)
		}
		ph := parsedHandler{Key: b.Handler, Name: h.Name, Tag: h.Tag, Local: h.Local}
		if len(h.Props) > 0 {
			ph.Props = h.Props
		}
		for _, t := range b.Triggers {
			pt, err := describeTrigger(t)
			if err != nil {
				return herrors.New(herrors.CodeSyntax).WithAttr(attr).Wrap(err)
			}
			ph.Triggers = append(ph.Triggers, pt)
		}
		out = append(out, ph)
	}

	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func describeTrigger(t string) (parsedTrigger, error) {
	kind := trigger.Classify(t)
	pt := parsedTrigger{Trigger: t, Kind: kind.String()}
	switch kind {
	case trigger.KindStateChanged:
		pt.Field = trigger.StateField(t)
	case trigger.KindAction:
		ref, err := trigger.ParseActionRef(t)
		if err != nil {
			return parsedTrigger{}, err
		}
		pt.Action = ref.Name
		pt.Phase = string(ref.Phase)
		if ref.External() {
			pt.Context = ref.ContextKey()
		}
	}
	return pt, nil
}
