package swarm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRuleClassifierClassify(t *testing.T) {
	c := NewRuleClassifier()

	t.Run("single intent", func(t *testing.T) {
		caps := c.Classify("Search for AI information")
		require.Equal(t, []Capability{CapabilityWebSearch}, caps)
	})

	t.Run("matching is case insensitive", func(t *testing.T) {
		caps := c.Classify("RESEARCH the topic")
		require.Equal(t, []Capability{CapabilityWebSearch}, caps)
	})

	t.Run("multiple intents in rule order", func(t *testing.T) {
		caps := c.Classify("Write a blog post about what you find when you search")
		require.Equal(t, []Capability{CapabilityWebSearch, CapabilityContentWriting}, caps)
	})

	t.Run("duplicate keywords collapse", func(t *testing.T) {
		caps := c.Classify("search and find and look up the docs")
		require.Equal(t, []Capability{CapabilityWebSearch}, caps)
	})

	t.Run("no match", func(t *testing.T) {
		require.Empty(t, c.Classify("hello there"))
	})
}

func TestRuleClassifierMode(t *testing.T) {
	c := NewRuleClassifier()

	t.Run("ordering cue forces sequential", func(t *testing.T) {
		msg := "First search for trends, then write a summary"
		require.Equal(t, ModeSequential, c.Mode(msg, 2))
	})

	t.Run("comparison cue with multiple tasks is parallel", func(t *testing.T) {
		msg := "Compare search results and also write an analysis"
		require.Equal(t, ModeParallel, c.Mode(msg, 2))
	})

	t.Run("comparison cue with one task stays sequential", func(t *testing.T) {
		require.Equal(t, ModeSequential, c.Mode("compare the options", 1))
	})

	t.Run("ordering wins over comparison", func(t *testing.T) {
		msg := "Compare both options, then summarize"
		require.Equal(t, ModeSequential, c.Mode(msg, 2))
	})

	t.Run("default is sequential", func(t *testing.T) {
		require.Equal(t, ModeSequential, c.Mode("write a poem", 1))
	})
}

func TestRuleClassifierCustomRules(t *testing.T) {
	c := NewRuleClassifier(IntentRule{
		Capability: CapabilityFinancialAnalysis,
		Keywords:   []string{"dcf", "discounted cash flow"},
	})
	require.Equal(t, []Capability{CapabilityFinancialAnalysis}, c.Classify("Run a DCF on this company"))
	require.Empty(t, c.Classify("search the web"))
}
