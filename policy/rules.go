// Package policy evaluates operator-supplied guard rules against plan steps.
// Rules are expr expressions over step fields, compiled once at load time.
// A rule that fails to evaluate denies the step: the guard never fails open.
package policy

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"

	"deskpilot/plan"
)

// Effect is what a matching rule does to the step under evaluation.
type Effect string

const (
	EffectDeny            Effect = "deny"
	EffectRequireApproval Effect = "require_approval"
)

// Rule is one operator-configured guard: when When evaluates true for a step,
// Effect applies.
type Rule struct {
	Name   string `yaml:"name" json:"name"`
	When   string `yaml:"when" json:"when"`
	Effect Effect `yaml:"effect" json:"effect"`
	Reason string `yaml:"reason" json:"reason"`
}

// Verdict is the outcome of evaluating the rule set for one step.
type Verdict struct {
	Deny             bool
	RequireApproval  bool
	Reason           string
	MatchedRuleNames []string
}

type compiledRule struct {
	rule    Rule
	program *vm.Program
}

// RuleSet holds compiled rules. A nil RuleSet evaluates to an empty verdict.
type RuleSet struct {
	rules []compiledRule
}

// stepEnv is the expression environment. Keeping it a fixed struct means
// rules are type-checked at compile time against the real step fields.
type stepEnv struct {
	Op        string `expr:"op"`
	App       string `expr:"app"`
	Target    string `expr:"target"`
	Text      string `expr:"text"`
	Keys      string `expr:"keys"`
	Value     string `expr:"value"`
	PlanRisk  string `expr:"plan_risk"`
	UserInput string `expr:"user_input"`
}

// Compile builds a RuleSet from rule definitions. Every When expression must
// compile and produce a bool.
func Compile(rules []Rule) (*RuleSet, error) {
	rs := &RuleSet{}

	for i, r := range rules {
		if r.When == "" {
			return nil, serr.New(fmt.Sprintf("rule %d (%s): empty condition", i+1, r.Name))
		}
		if r.Effect != EffectDeny && r.Effect != EffectRequireApproval {
			return nil, serr.New(fmt.Sprintf("rule %d (%s): unknown effect %q", i+1, r.Name, r.Effect))
		}

		prog, err := expr.Compile(r.When, expr.Env(stepEnv{}), expr.AsBool())
		if err != nil {
			return nil, serr.Wrap(err, fmt.Sprintf("rule %d (%s) does not compile", i+1, r.Name))
		}

		rs.rules = append(rs.rules, compiledRule{rule: r, program: prog})
	}

	if len(rs.rules) > 0 {
		logger.Info("guard rules compiled", "count", len(rs.rules))
	}

	return rs, nil
}

// Evaluate runs every rule against one step. Evaluation errors count as a
// deny for that step.
func (rs *RuleSet) Evaluate(step plan.Step, planRisk plan.RiskLevel, userInput string) Verdict {
	var v Verdict
	if rs == nil || len(rs.rules) == 0 {
		return v
	}

	env := stepEnv{
		Op:        string(step.Op),
		App:       step.App,
		Target:    step.Target,
		Text:      step.Text,
		Keys:      step.Keys,
		Value:     step.Value,
		PlanRisk:  string(planRisk),
		UserInput: userInput,
	}

	for _, cr := range rs.rules {
		out, err := expr.Run(cr.program, env)
		if err != nil {
			logger.LogErr(err, "guard rule evaluation failed, denying step", "rule", cr.rule.Name)
			v.Deny = true
			v.Reason = fmt.Sprintf("guard rule %q failed to evaluate", cr.rule.Name)
			v.MatchedRuleNames = append(v.MatchedRuleNames, cr.rule.Name)
			continue
		}

		matched, _ := out.(bool)
		if !matched {
			continue
		}

		v.MatchedRuleNames = append(v.MatchedRuleNames, cr.rule.Name)
		switch cr.rule.Effect {
		case EffectDeny:
			v.Deny = true
			if v.Reason == "" {
				v.Reason = ruleReason(cr.rule)
			}
		case EffectRequireApproval:
			v.RequireApproval = true
			if v.Reason == "" {
				v.Reason = ruleReason(cr.rule)
			}
		}
	}

	return v
}

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

func ruleReason(r Rule) string {
	if r.Reason != "" {
		return r.Reason
	}
	return fmt.Sprintf("matched guard rule %q", r.Name)
}
