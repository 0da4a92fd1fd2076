package trigger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	ast, err := Parse("increment and log on click or keyup; reset on a:clear")
	require.NoError(t, err)

	assert.Equal(t, []string{"reset", "increment", "log"}, ast.Keys())
	assert.Equal(t, []string{"click", "keyup"}, ast.Triggers("increment"))
	assert.Equal(t, []string{"click", "keyup"}, ast.Triggers("log"))
	assert.Equal(t, []string{"a:clear"}, ast.Triggers("reset"))
	assert.Nil(t, ast.Triggers("missing"))
}

func TestParseRepeatedKeyUsesReversedWalk(t *testing.T) {
	ast, err := Parse("save on click; save on submit or click")
	require.NoError(t, err)

	assert.Equal(t, []string{"save"}, ast.Keys())
	assert.Equal(t, []string{"submit", "click"}, ast.Triggers("save"))
}

func TestParseSkips(t *testing.T) {
	ast, err := Parse(" ; save on click ;; debounce options 200 ;")
	require.NoError(t, err)
	assert.Equal(t, []string{"save"}, ast.Keys())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		attr string
	}{
		{"no on", "save click"},
		{"double on", "save on click on submit"},
		{"empty trigger", "save on click or  or submit"},
		{"empty handler", "save and  on click"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.attr)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
		})
	}
}

func TestParseHandler(t *testing.T) {
	tests := []struct {
		key   string
		want  Handler
		isErr bool
	}{
		{key: "inc", want: Handler{Key: "inc", Name: "inc", Props: map[string]any{}}},
		{key: "$inc", want: Handler{Key: "$inc", Name: "inc", Local: true, Props: map[string]any{}}},
		{key: `load:{"id":7}`, want: Handler{Key: `load:{"id":7}`, Name: "load", Props: map[string]any{"id": float64(7)}}},
		{key: "load:[1,2]", want: Handler{Key: "load:[1,2]", Name: "load", Props: map[string]any{}}},
		{key: "load:", want: Handler{Key: "load:", Name: "load", Props: map[string]any{}}},
		{key: "open#main", want: Handler{Key: "open#main", Name: "open", Tag: "main", Props: map[string]any{}}},
		{key: `$open#main:{"x":"a:b"}`, want: Handler{Key: `$open#main:{"x":"a:b"}`, Name: "open", Tag: "main", Local: true, Props: map[string]any{"x": "a:b"}}},
		{key: "load:{bad", isErr: true},
		{key: "$", isErr: true},
		{key: "inc@other", isErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := ParseHandler(tt.key)
			if tt.isErr {
				var se *SyntaxError
				assert.ErrorAs(t, err, &se)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseActionRef(t *testing.T) {
	tests := []struct {
		in    string
		want  ActionRef
		isErr bool
	}{
		{in: "a:inc", want: ActionRef{Name: "inc"}},
		{in: "a:inc:before", want: ActionRef{Name: "inc", Phase: PhaseBefore}},
		{in: "a:inc:after@cart", want: ActionRef{Name: "inc", Phase: PhaseAfter, Context: "cart"}},
		{in: "a:inc@cart#a:before", want: ActionRef{Name: "inc", Phase: PhaseBefore, Context: "cart", Tag: "a"}},
		{in: "a:inc:during", isErr: true},
		{in: "a:", isErr: true},
		{in: "a:inc@", isErr: true},
		{in: "a:inc#t", isErr: true},
		{in: "click", isErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseActionRef(tt.in)
			if tt.isErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	ref, _ := ParseActionRef("a:inc@cart#a")
	assert.Equal(t, "cart#a", ref.ContextKey())
	assert.True(t, ref.External())
	assert.Equal(t, PhaseAfter, ref.RunPhase())
}

func TestClassify(t *testing.T) {
	tests := map[string]Kind{
		"click":                KindEvent,
		"hc:loaded":            KindLoaded,
		"hc:mutated":           KindMutated,
		"hc:statechanged":      KindStateChanged,
		"HC:StateChanged":      KindStateChanged,
		"hc:statechanged:user": KindStateChanged,
		"hc:statechangedx":     KindEvent,
		"a:inc":                KindAction,
	}
	for in, want := range tests {
		assert.Equal(t, want, Classify(in), in)
	}
	assert.Equal(t, "user", StateField("hc:statechanged:user"))
	assert.Equal(t, "", StateField("hc:statechanged"))
	assert.Equal(t, "", StateField("click"))
}

func TestCheckCircular(t *testing.T) {
	ast, err := Parse("inc on click; log on a:inc")
	require.NoError(t, err)
	var ce *CircularError
	require.True(t, errors.As(CheckCircular(ast), &ce))
	assert.Equal(t, "log", ce.Handler)
	assert.Equal(t, "a:inc", ce.Trigger)

	ast, _ = Parse(`$inc:{"by":1} on a:inc:before`)
	assert.Error(t, CheckCircular(ast))

	ast, _ = Parse("log on a:inc@other or a:reset")
	assert.NoError(t, CheckCircular(ast))
}

func TestBindings(t *testing.T) {
	ast, err := Parse("a and b on click")
	require.NoError(t, err)
	assert.Equal(t, []Binding{
		{Handler: "a", Triggers: []string{"click"}},
		{Handler: "b", Triggers: []string{"click"}},
	}, ast.Bindings())
}
