package swarm

import "strings"

// IntentRule maps a set of trigger keywords to a capability. Rules are
// evaluated in order, and that order is the scan order of the resulting
// plan: the first rule that matches contributes the first task.
type IntentRule struct {
	Capability Capability
	Keywords   []string
}

// Classifier turns a free-form request into required capabilities and
// resolves the adaptive workflow mode. Implementations must be
// deterministic: same message, same output.
type Classifier interface {
	// Classify returns the capabilities the message calls for, in rule
	// order, without duplicates. An empty result means no intent matched.
	Classify(message string) []Capability

	// Mode resolves ModeAdaptive for a message that produced taskCount
	// tasks. It never returns ModeAdaptive.
	Mode(message string, taskCount int) WorkflowMode
}

// DefaultIntentRules returns the built-in keyword rules. Order matters:
// earlier rules win the race for task position in the plan.
func DefaultIntentRules() []IntentRule {
	return []IntentRule{
		{CapabilityWebSearch, []string{"search", "find", "look up", "research"}},
		{CapabilityRAGRetrieval, []string{"remember", "recall", "knowledge", "what did"}},
		{CapabilityCodeGeneration, []string{"code", "program", "function", "script", "implement", "build"}},
		{CapabilityCodeAnalysis, []string{"debug", "analyze", "review code"}},
		{CapabilityContentWriting, []string{"write", "blog", "tweet", "article", "summary", "draft", "post"}},
		{CapabilityMemoryManagement, []string{"store", "save", "remember this"}},
	}
}

// sequentialCues are ordering connectives: their presence forces a
// sequential plan under ModeAdaptive.
var sequentialCues = []string{
	"then", "after", "first", "finally", "next", "once you", "based on",
}

// parallelCues are comparison/aggregation connectives: with two or more
// tasks they select a parallel plan.
var parallelCues = []string{
	"compare", "and also", "at the same time", "versus", "in parallel",
}

// RuleClassifier is the default Classifier: an ordered keyword rule list
// plus connective detection for mode resolution.
type RuleClassifier struct {
	rules []IntentRule
}

// NewRuleClassifier builds a classifier from the given rules. With no rules
// it uses DefaultIntentRules.
func NewRuleClassifier(rules ...IntentRule) *RuleClassifier {
	if len(rules) == 0 {
		rules = DefaultIntentRules()
	}
	return &RuleClassifier{rules: rules}
}

func (c *RuleClassifier) Classify(message string) []Capability {
	lower := strings.ToLower(message)
	var caps []Capability
	seen := map[Capability]struct{}{}
	for _, rule := range c.rules {
		if _, dup := seen[rule.Capability]; dup {
			continue
		}
		if containsAny(lower, rule.Keywords) {
			caps = append(caps, rule.Capability)
			seen[rule.Capability] = struct{}{}
		}
	}
	return caps
}

// Mode resolves the adaptive mode. Ordering connectives always win over
// comparison connectives; single-task plans are trivially sequential.
func (c *RuleClassifier) Mode(message string, taskCount int) WorkflowMode {
	lower := strings.ToLower(message)
	if containsAny(lower, sequentialCues) {
		return ModeSequential
	}
	if taskCount >= 2 && containsAny(lower, parallelCues) {
		return ModeParallel
	}
	return ModeSequential
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
