package retrieval

import "testing"

func TestClassifyCategories(t *testing.T) {
	cases := []struct {
		task string
		want []string
	}{
		{"Fix React component rendering issue", []string{"frontend", "debugging"}},
		{"DEPLOY the release PIPELINE", []string{"deployment"}},
		{"write unit tests for the api server", []string{"backend", "testing"}},
		{"refactor the storage architecture and update docs", []string{"documentation", "architecture"}},
		{"nothing matches here", nil},
	}
	for _, tc := range cases {
		got := Classify(tc.task).List()
		if len(got) != len(tc.want) {
			t.Errorf("%q: categories = %v, want %v", tc.task, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%q: categories = %v, want %v", tc.task, got, tc.want)
				break
			}
		}
	}
}
