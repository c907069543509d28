package retrieval

import "strings"

// Categories holds the seven boolean task categories. They are independent
// and non-exclusive; a task can match several at once.
type Categories struct {
	Frontend      bool
	Backend       bool
	Documentation bool
	Deployment    bool
	Testing       bool
	Architecture  bool
	Debugging     bool
}

// Fixed keyword sets matched by substring containment on the lower-cased
// task description. Keyword-set matching only; no language understanding.
var keywordSets = []struct {
	name  string
	words []string
	set   func(*Categories)
}{
	{"frontend", []string{"react", "component", "frontend", "ui", "css", "style", "render"}, func(c *Categories) { c.Frontend = true }},
	{"backend", []string{"backend", "api", "server", "function", "database", "endpoint"}, func(c *Categories) { c.Backend = true }},
	{"documentation", []string{"docs", "document", "readme", "guide"}, func(c *Categories) { c.Documentation = true }},
	{"deployment", []string{"deploy", "release", "pipeline", "docker", "rollout"}, func(c *Categories) { c.Deployment = true }},
	{"testing", []string{"test", "spec", "coverage", "assertion"}, func(c *Categories) { c.Testing = true }},
	{"architecture", []string{"architecture", "design", "structure", "refactor"}, func(c *Categories) { c.Architecture = true }},
	{"debugging", []string{"bug", "fix", "error", "issue", "debug", "crash"}, func(c *Categories) { c.Debugging = true }},
}

// Classify tests the task description against every keyword set.
func Classify(task string) Categories {
	low := strings.ToLower(task)
	var c Categories
	for _, ks := range keywordSets {
		for _, w := range ks.words {
			if strings.Contains(low, w) {
				ks.set(&c)
				break
			}
		}
	}
	return c
}

// List returns the matched category names in fixed order.
func (c Categories) List() []string {
	var out []string
	flags := []struct {
		name string
		on   bool
	}{
		{"frontend", c.Frontend},
		{"backend", c.Backend},
		{"documentation", c.Documentation},
		{"deployment", c.Deployment},
		{"testing", c.Testing},
		{"architecture", c.Architecture},
		{"debugging", c.Debugging},
	}
	for _, f := range flags {
		if f.on {
			out = append(out, f.name)
		}
	}
	return out
}
