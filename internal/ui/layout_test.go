package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestContentHeightReservesChrome(t *testing.T) {
	assert.Equal(t, 21, NewLayout(80, 24).ContentHeight())
	assert.Equal(t, 1, NewLayout(80, 2).ContentHeight())
}

func TestFitSegmentsDropsTrailingItems(t *testing.T) {
	segments := []string{"registry v2 · 3 vendors", "fetching (1)", "next fetch 18:00"}

	assert.Equal(t, "registry v2 · 3 vendors | fetching (1) | next fetch 18:00", fitSegments(segments, 100))
	assert.Equal(t, "registry v2 · 3 vendors | fetching (1)", fitSegments(segments, 40))
	assert.Equal(t, "registry v2 · 3 vendors", fitSegments(segments, 25))
	assert.Equal(t, "registry v2…", fitSegments(segments, 12))
	assert.Equal(t, "a | b", fitSegments([]string{"a", "", "b"}, 100))
}

func TestRenderHeaderKeepsTitleAndFirstSegment(t *testing.T) {
	l := NewLayout(60, 24)
	header := l.RenderHeader("Vendor Automation", "registry v1 · 2 vendors", "a very long segment that cannot fit")

	assert.Contains(t, header, "Vendor Automation")
	assert.Contains(t, header, "registry v1 · 2 vendors")
	assert.NotContains(t, header, "cannot fit")
	assert.LessOrEqual(t, lipgloss.Width(header), 60)
}

func TestRenderStatusBarTruncatesHints(t *testing.T) {
	l := NewLayout(20, 10)
	bar := l.RenderStatusBar(strings.Repeat("x", 50))

	assert.Contains(t, bar, "…")
	assert.LessOrEqual(t, lipgloss.Width(bar), 20)
}

func TestRenderWithFrameStacksSections(t *testing.T) {
	l := NewLayout(40, 10)
	out := l.RenderWithFrame("H", l.RenderContext("Manual email: ", "a@x.com"), "body", "S")

	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[1], "Manual email: a@x.com")
	assert.Contains(t, lines[2], "body")
}
