package core

import (
	"errors"
	"testing"

	"github.com/chhz0/dslproc/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoRegistry() *Registry {
	r := NewRegistry()
	r.Register("notification", nil)
	r.Register("task", nil)
	return r
}

func opts(kv ...string) types.OptionMap {
	m := types.OptionMap{}
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i], kv[i+1])
	}
	return m
}

func TestParse_Demo(t *testing.T) {
	text := `
		notification
		label: 'New message!'
		color: 'blue'
		end
		task
		color: 'red'
		label: 'Important task'
		end
	`
	items, err := Parse(text, demoRegistry())
	require.NoError(t, err)

	want := []types.Item{
		{Type: "notification", Options: opts("label", "New message!", "color", "blue")},
		{Type: "task", Options: opts("color", "red", "label", "Important task")},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n\t\n", "end\n  end  \n"} {
		items, err := Parse(text, demoRegistry())
		require.NoError(t, err, "input %q", text)
		assert.Empty(t, items, "input %q", text)
	}
}

func TestParse_TypeOnlyBlock(t *testing.T) {
	items, err := Parse("task\nend\n", demoRegistry())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "task", items[0].Type)
	assert.NotNil(t, items[0].Options)
	assert.Equal(t, 0, items[0].Options.Len())
}

func TestParse_TrailingBlockWithoutEnd(t *testing.T) {
	items, err := Parse("task\nend\nnotification\nlabel: 'x'\n", demoRegistry())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "notification", items[1].Type)
	v, _ := items[1].Options.Get("label")
	assert.Equal(t, "x", v)
}

func TestParse_EndInsideValueIsNotTerminator(t *testing.T) {
	items, err := Parse("task\nlabel: 'Send at the end of day'\nend", demoRegistry())
	require.NoError(t, err)
	require.Len(t, items, 1)
	v, _ := items[0].Options.Get("label")
	assert.Equal(t, "Send at the end of day", v)
}

func TestParse_EndTokenSharesLine(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []types.Item
	}{
		{
			name: "one line",
			text: "notification end task end",
			want: []types.Item{
				{Type: "notification", Options: opts()},
				{Type: "task", Options: opts()},
			},
		},
		{
			name: "after option",
			text: "task\nlabel: 'x' end\nnotification\nend",
			want: []types.Item{
				{Type: "task", Options: opts("label", "x")},
				{Type: "notification", Options: opts()},
			},
		},
		{
			name: "before type",
			text: "task\nlabel: 'x'\nend notification\nend",
			want: []types.Item{
				{Type: "task", Options: opts("label", "x")},
				{Type: "notification", Options: opts()},
			},
		},
		{
			name: "after type",
			text: "task end\nnotification\ncolor: 'blue'\tend",
			want: []types.Item{
				{Type: "task", Options: opts()},
				{Type: "notification", Options: opts("color", "blue")},
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			items, err := Parse(c.text, demoRegistry())
			require.NoError(t, err)
			if diff := cmp.Diff(c.want, items); diff != "" {
				t.Errorf("items mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_EndInsideWordOrValueIsKept(t *testing.T) {
	items, err := Parse("task\nlabel: 'the end of it'\nend\nnotification\nlegend: 'ended'\nend", demoRegistry())
	require.NoError(t, err)
	require.Len(t, items, 2)
	v, _ := items[0].Options.Get("label")
	assert.Equal(t, "the end of it", v)
	v, _ = items[1].Options.Get("legend")
	assert.Equal(t, "ended", v)
}

// 未闭合的引号里出现 end 也不切块，整行按格式错误报告
func TestParse_EndInsideUnclosedValue(t *testing.T) {
	_, err := Parse("task\nlabel: 'open end\nend", demoRegistry())
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, ErrMalformedOption)
	assert.Equal(t, 2, pe.Line)
}

func TestParse_DuplicateKeyOverwrites(t *testing.T) {
	items, err := Parse("task\ncolor: 'red'\nlabel: 'a'\ncolor: 'green'\nend", demoRegistry())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"color", "label"}, items[0].Options.Keys())
	v, _ := items[0].Options.Get("color")
	assert.Equal(t, "green", v)
}

func TestParse_UnknownType(t *testing.T) {
	text := "task\nend\nNotification\nlabel: 'x'\nend"
	items, err := Parse(text, demoRegistry())
	require.Error(t, err)
	assert.Nil(t, items)
	assert.True(t, errors.Is(err, ErrUnknownType))

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Notification", perr.Text)
	assert.Equal(t, 2, perr.Block)
	assert.Equal(t, 3, perr.Line)
}

func TestParse_MalformedOption(t *testing.T) {
	cases := []string{
		"label 'x'",
		"label: x",
		"label: \"x\"",
		"label: 'x",
		"label: - 'x'",
	}
	for _, line := range cases {
		t.Run(line, func(t *testing.T) {
			_, err := Parse("task\n"+line+"\nend", demoRegistry())
			require.ErrorIs(t, err, ErrMalformedOption)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, line, perr.Text)
			assert.Equal(t, 2, perr.Line)
		})
	}
}

func TestScanOption(t *testing.T) {
	cases := []struct {
		line       string
		key, value string
	}{
		{"label: 'New message!'", "label", "New message!"},
		{"label:'tight'", "label", "tight"},
		{"  spaced key  :   'v'", "spaced key", "v"},
		{"url: 'http://example.com:8080'", "url", "http://example.com:8080"},
		{"empty: ''", "empty", ""},
		{": 'no key'", "", "no key"},
		{"label: 'a' trailing", "label", "a"},
	}
	for _, c := range cases {
		key, value, ok := scanOption(c.line)
		require.True(t, ok, c.line)
		assert.Equal(t, c.key, key, c.line)
		assert.Equal(t, c.value, value, c.line)
	}
}

// 值里的单引号会截断：第一个闭合引号之后的内容被忽略
func TestScanOption_EmbeddedQuoteIsTruncated(t *testing.T) {
	key, value, ok := scanOption("label: 'it's fine'")
	require.True(t, ok)
	assert.Equal(t, "label", key)
	assert.Equal(t, "it", value)
}

func TestParse_CRLF(t *testing.T) {
	items, err := Parse("task\r\nlabel: 'x'\r\nend\r\n", demoRegistry())
	require.NoError(t, err)
	require.Len(t, items, 1)
	v, _ := items[0].Options.Get("label")
	assert.Equal(t, "x", v)
}
